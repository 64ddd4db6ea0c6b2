package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/pkg/cli"
	"github.com/huttotw/kia-connect/pkg/proxy"
)

const (
	defaultHost = "localhost"
	defaultPort = 443
)

const (
	EnvTlsCert   = "KIA_HTTP_PROXY_TLS_CERT"
	EnvTlsKey    = "KIA_HTTP_PROXY_TLS_KEY"
	EnvHost      = "KIA_HTTP_PROXY_HOST"
	EnvPort      = "KIA_HTTP_PROXY_PORT"
	EnvTimeout   = "KIA_HTTP_PROXY_TIMEOUT"
	EnvTokenFile = "KIA_HTTP_PROXY_TOKEN_FILE"
	EnvVerbose   = "KIA_VERBOSE"
)

const nonLocalhostWarning = `
Do not listen on a network interface without adding client authentication (-token-file). Unauthorized
clients may be used to lock, unlock, or start climate control on your vehicles, and to create
excessive traffic from your IP address to Kia's servers.`

const shutdownGracePeriod = 10 * time.Second

type HttpProxyConfig struct {
	keyFilename   string
	certFilename  string
	tokenFilename string
	verbose       bool
	host          string
	port          int
	timeout       time.Duration
}

// proxyEnvironment mirrors the variables above.
type proxyEnvironment struct {
	TlsCert   string        `env:"KIA_HTTP_PROXY_TLS_CERT"`
	TlsKey    string        `env:"KIA_HTTP_PROXY_TLS_KEY"`
	Host      string        `env:"KIA_HTTP_PROXY_HOST"`
	Port      int           `env:"KIA_HTTP_PROXY_PORT"`
	Timeout   time.Duration `env:"KIA_HTTP_PROXY_TIMEOUT"`
	TokenFile string        `env:"KIA_HTTP_PROXY_TOKEN_FILE"`
	Verbose   bool          `env:"KIA_VERBOSE"`
}

var (
	httpConfig = &HttpProxyConfig{}
)

func init() {
	flag.StringVar(&httpConfig.certFilename, "cert", "", "TLS certificate chain `file` with concatenated server, intermediate CA, and root CA certificates. A self-signed certificate is generated if omitted.")
	flag.StringVar(&httpConfig.keyFilename, "tls-key", "", "Server TLS private key `file`")
	flag.StringVar(&httpConfig.tokenFilename, "token-file", "", "A `file` containing the bearer token clients must present")
	flag.BoolVar(&httpConfig.verbose, "verbose", false, "Enable verbose logging")
	flag.StringVar(&httpConfig.host, "host", defaultHost, "Proxy server `hostname`")
	flag.IntVar(&httpConfig.port, "port", defaultPort, "`Port` to listen on")
	flag.DurationVar(&httpConfig.timeout, "timeout", proxy.DefaultTimeout, "Timeout interval when sending commands")
}

func Usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [OPTION...]\n", os.Args[0])
	fmt.Fprintf(out, "\nA server that exposes a REST API for sending commands to Kia vehicles")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, nonLocalhostWarning)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
}

func main() {
	config, err := cli.NewConfig(cli.FlagAccount | cli.FlagKeyring | cli.FlagVIN)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credential configuration: %s\n", err)
		os.Exit(1)
	}

	defer func() {
		log.Sync()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}()

	flag.Usage = Usage
	config.RegisterCommandLineFlags()
	flag.Parse()
	if err = readFromEnvironment(); err != nil {
		return
	}
	if err = config.ReadFromEnvironment(); err != nil {
		return
	}

	if httpConfig.verbose || config.Verbose {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelInfo)
	}

	var token string
	token, err = loadToken(httpConfig.tokenFilename)
	if err != nil {
		return
	}
	if httpConfig.host != defaultHost && token == "" {
		fmt.Fprintln(os.Stderr, nonLocalhostWarning)
	}

	if err = config.LoadCredentials(); err != nil {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debug("Creating proxy")
	client, err := config.Connect(ctx)
	if err != nil {
		return
	}
	defer client.Close()

	p := proxy.New(client, token)
	p.Timeout = httpConfig.timeout
	if config.TargetTemperature != "" {
		p.TargetTemperature = config.TargetTemperature
	}

	addr := fmt.Sprintf("%s:%d", httpConfig.host, httpConfig.port)
	server, selfSigned := NewServer(addr, p, httpConfig.certFilename == "")
	if selfSigned != "" {
		log.Info("Using self-signed certificate:\n%s", selfSigned)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warning("Shutdown: %s", err)
		}
	}()

	log.Info("Listening on %s", addr)
	err = server.ListenAndServeTLS(httpConfig.certFilename, httpConfig.keyFilename)
	if errors.Is(err, http.ErrServerClosed) {
		log.Info("Server stopped")
		err = nil
	}
}

// loadToken reads the bearer token from filename. An empty filename disables client
// authentication.
func loadToken(filename string) (string, error) {
	if filename == "" {
		return "", nil
	}
	contents, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(contents))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", filename)
	}
	return token, nil
}

// readFromEnvironment applies configuration from environment variables.
// Values are not overwritten.
func readFromEnvironment() error {
	var e proxyEnvironment
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("invalid proxy environment: %w", err)
	}

	if httpConfig.certFilename == "" {
		httpConfig.certFilename = e.TlsCert
	}

	if httpConfig.keyFilename == "" {
		httpConfig.keyFilename = e.TlsKey
	}

	if httpConfig.tokenFilename == "" {
		httpConfig.tokenFilename = e.TokenFile
	}

	if httpConfig.host == defaultHost && e.Host != "" {
		httpConfig.host = e.Host
	}

	if !httpConfig.verbose {
		httpConfig.verbose = e.Verbose
	}

	if httpConfig.port == defaultPort && e.Port != 0 {
		httpConfig.port = e.Port
	}

	if httpConfig.timeout == proxy.DefaultTimeout && e.Timeout != 0 {
		httpConfig.timeout = e.Timeout
	}

	return nil
}
