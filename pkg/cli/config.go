/*
Package cli facilitates building command-line applications that control vehicles registered to a
Kia Owners account. It defines a [Config] type that can be used to register common command-line
flags (using the Golang flag package) and environment variable equivalents.

The package uses [keyring]'s platform-agnostic interface for storing the account password in an
OS-dependent credential store.

# Examples

	import flag

	config, err := NewConfig(FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds command-line flags for the account, VIN, keyring, etc.
	flag.Parse()
	if err := config.ReadFromEnvironment(); err != nil { // Fills in missing fields
		panic(err)
	}
	config.LoadCredentials() // Prompt for keyring or account password if needed

	client, err := config.Connect(ctx)
	if err != nil {
		panic(err)
	}
	defer client.Close()

Use a [Flag] mask to control which [Config] fields are registered and read. Note that
config.Flags must be set before calling [flag.Parse] or [Config.ReadFromEnvironment]:

	config, err = NewConfig(FlagAccount | FlagVIN) // Password must come from a file or a prompt.
*/
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/pkg/account"
	"github.com/huttotw/kia-connect/pkg/vehicle"

	"github.com/99designs/keyring"
	"github.com/caarlos0/env/v11"
)

// Environment variable names used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvKiaUserID            = "KIA_USER_ID"
	EnvKiaPasswordFile      = "KIA_PASSWORD_FILE"
	EnvKiaVIN               = "KIA_VIN"
	EnvKiaServerURL         = "KIA_SERVER_URL"
	EnvKiaTargetTemperature = "KIA_TARGET_TEMPERATURE"
	EnvKiaKeyringType       = "KIA_KEYRING_TYPE"
	EnvKiaKeyringPass       = "KIA_KEYRING_PASSWORD"
	EnvKiaKeyringPath       = "KIA_KEYRING_PATH"
	EnvKiaKeyringDebug      = "KIA_KEYRING_DEBUG"
	EnvKiaVerbose           = "KIA_VERBOSE"
)

// environment mirrors the variables above.
type environment struct {
	UserID            string `env:"KIA_USER_ID"`
	PasswordFile      string `env:"KIA_PASSWORD_FILE"`
	VIN               string `env:"KIA_VIN"`
	ServerURL         string `env:"KIA_SERVER_URL"`
	TargetTemperature string `env:"KIA_TARGET_TEMPERATURE"`
	KeyringType       string `env:"KIA_KEYRING_TYPE"`
	KeyringPassword   string `env:"KIA_KEYRING_PASSWORD"`
	KeyringPath       string `env:"KIA_KEYRING_PATH"`
	KeyringDebug      bool   `env:"KIA_KEYRING_DEBUG"`
	Verbose           bool   `env:"KIA_VERBOSE"`
}

// Flag controls what options should be scanned from the command line and/or environment variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagVIN     Flag = 1 // Enable VIN option.
	FlagAccount Flag = 2 // Enable account options (user ID, password file, server URL).
	FlagKeyring Flag = 4 // Enable keyring options. Allows storing the account password.
	FlagAll     Flag = FlagVIN | FlagAccount | FlagKeyring
)

var (
	ErrNoUserID      = errors.New("account user ID not provided")
	ErrNoPassword    = errors.New("account password not available")
	ErrNoVINProvided = errors.New("VIN not provided")
	ErrKeyNotFound   = keyring.ErrKeyNotFound
)

// Config fields determine how a client signs in to the Kia Owners portal.
type Config struct {
	Flags             Flag // Controls which set of environment variables/CLI flags to use.
	UserID            string
	PasswordFile      string
	VIN               string
	ServerURL         string
	TargetTemperature string
	Backend           keyring.Config
	BackendType       backendType
	Debug             bool // Enable keyring debug messages
	Verbose           bool

	keyringPassword *string
	password        string
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags: flags,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getKeyringPassword
	c.Backend.FilePasswordFunc = c.getKeyringPassword

	return &c, nil
}

// RegisterCommandLineFlags adds c's options to the default flag set.
func (c *Config) RegisterCommandLineFlags() {
	c.RegisterFlags(flag.CommandLine)
}

// RegisterFlags adds c's options to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	if c.Flags.isSet(FlagVIN) {
		fs.StringVar(&c.VIN, "vin", "", "Vehicle Identification Number. Defaults to $KIA_VIN.")
		fs.StringVar(&c.TargetTemperature, "temperature", "", "Default climate `setpoint` in Fahrenheit. Defaults to $KIA_TARGET_TEMPERATURE.")
	}
	if c.Flags.isSet(FlagAccount) {
		fs.StringVar(&c.UserID, "user", "", "Kia Owners account `email`. Defaults to $KIA_USER_ID.")
		fs.StringVar(&c.PasswordFile, "password-file", "", "A `file` containing the account password. Defaults to $KIA_PASSWORD_FILE.")
		fs.StringVar(&c.ServerURL, "server", "", "Portal base `URL`. Defaults to $KIA_SERVER_URL.")
	}
	if c.Flags.isSet(FlagKeyring) {
		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		fs.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $KIA_KEYRING_TYPE.")
		fs.StringVar(&c.Backend.FileDir, "keyring-file-dir", "", "keyring `directory` for file-backed keyring types. Defaults to $KIA_KEYRING_PATH or "+keyringDirectory+".")
		fs.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
		c.registerFlagsOsSpecific(fs)
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization method) will prevent the
// environment from overriding explicit command-line parameters and avoid potentially misleading
// debug log messages.
func (c *Config) ReadFromEnvironment() error {
	var e environment
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if !c.Verbose {
		c.Verbose = e.Verbose
	}
	if c.Flags.isSet(FlagVIN) {
		if c.VIN == "" {
			c.VIN = e.VIN
			log.Debug("Set VIN to '%s'", c.VIN)
		}
		if c.TargetTemperature == "" {
			c.TargetTemperature = e.TargetTemperature
		}
	}
	if c.Flags.isSet(FlagAccount) {
		if c.UserID == "" {
			c.UserID = e.UserID
			log.Debug("Set user ID to '%s'", c.UserID)
		}
		if c.PasswordFile == "" {
			c.PasswordFile = e.PasswordFile
			log.Debug("Set password file to '%s'", c.PasswordFile)
		}
		if c.ServerURL == "" {
			c.ServerURL = e.ServerURL
		}
	}
	if c.Flags.isSet(FlagKeyring) {
		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(e.KeyringType); err == nil {
				log.Debug("Set keyring type to '%s'", c.BackendType)
			}
		}
		if c.keyringPassword == nil {
			password := e.KeyringPassword
			c.keyringPassword = &password
			if len(password) > 0 {
				log.Debug("Set keyring File Password to %s", strings.Repeat("*", len("hunter2")))
			}
		}
		if c.Backend.FileDir == "" {
			c.Backend.FileDir = e.KeyringPath
			if c.Backend.FileDir == "" {
				c.Backend.FileDir = keyringDirectory
			}
			log.Debug("Set keyring File Path to '%s'", c.Backend.FileDir)
		}
		if !c.Debug {
			c.Debug = e.KeyringDebug
			log.Debug("Set keyring Debug Logging to '%v'", c.Debug)
		}
		keyring.Debug = c.Debug
	}
	return nil
}

// LoadCredentials resolves the account password, prompting if needed. Call this method before
// [Config.Connect] to prevent interactive prompts from counting against timeouts.
func (c *Config) LoadCredentials() error {
	_, err := c.Credentials()
	return err
}

// Credentials returns the configured account credentials.
//
// The password is read from c.PasswordFile if set, then from the system keyring, and finally from
// an interactive prompt. It is cached after it is first loaded.
func (c *Config) Credentials() (account.Credentials, error) {
	if c.UserID == "" {
		return account.Credentials{}, ErrNoUserID
	}
	if c.password == "" {
		password, err := c.loadPassword()
		if err != nil {
			return account.Credentials{}, err
		}
		c.password = password
	}
	return account.Credentials{UserID: c.UserID, Password: c.password}, nil
}

func (c *Config) loadPassword() (string, error) {
	if c.PasswordFile != "" {
		contents, err := os.ReadFile(c.PasswordFile)
		if err == nil {
			password := strings.TrimRight(string(contents), "\r\n")
			if password == "" {
				return "", fmt.Errorf("password file %s is empty", c.PasswordFile)
			}
			return password, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		log.Warning("Password file %s does not exist", c.PasswordFile)
	}
	if c.Flags.isSet(FlagKeyring) {
		password, err := c.LoadPasswordFromKeyring()
		if err == nil {
			return password, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return "", err
		}
		log.Debug("No password stored for %s", c.UserID)
	}
	password, err := PromptPassword(fmt.Sprintf("Password for %s", c.UserID))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoPassword, err)
	}
	return password, nil
}

// ClientConfig translates c into settings for [vehicle.New].
func (c *Config) ClientConfig() vehicle.Config {
	return vehicle.Config{
		ServerURL:         c.ServerURL,
		TargetTemperature: c.TargetTemperature,
	}
}

// Connect builds a client for the configured account and signs in.
func (c *Config) Connect(ctx context.Context) (*vehicle.Client, error) {
	return c.ConnectWith(ctx, c.ClientConfig())
}

// ConnectWith is like Connect but uses settings in place of c.ClientConfig().
func (c *Config) ConnectWith(ctx context.Context, settings vehicle.Config) (*vehicle.Client, error) {
	creds, err := c.Credentials()
	if err != nil {
		return nil, err
	}
	client, err := vehicle.New(creds, settings)
	if err != nil {
		return nil, err
	}
	log.Info("Signing in as %s...", c.UserID)
	if err := client.EnsureSession(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Vehicle returns a handle for c.VIN.
func (c *Config) Vehicle(client *vehicle.Client) (*vehicle.Vehicle, error) {
	if c.VIN == "" {
		return nil, ErrNoVINProvided
	}
	return client.Vehicle(c.VIN), nil
}
