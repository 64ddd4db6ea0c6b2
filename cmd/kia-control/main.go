package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/pkg/cli"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/transaction"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Every command requires an account user ID (-user or $KIA_USER_ID).
 * The password is read from -password-file, the system keyring (see save-password), or a prompt.
 * Vehicle commands require a VIN (-vin or $KIA_VIN). Run list to find it.`

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Printf("\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Println("")
	fmt.Println(usage)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

func runCommand(env *Env, args []string, timeout time.Duration) int {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if info, ok := commands[args[0]]; ok && info.longRunning {
		ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt)
	} else {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	}
	defer cancel()

	if err := execute(ctx, env, args); err != nil {
		if protocol.IsUnresolved(err) {
			writeErr("Couldn't verify success: %s", err)
			writeErr("Run status to see whether the vehicle applied the command.")
		} else if protocol.MayHaveSucceeded(err) {
			writeErr("Couldn't verify success: %s", err)
		} else if protocol.IsAuthenticationError(err) {
			writeErr("Sign-in failed: %s", err)
		} else {
			writeErr("Failed to execute command: %s", err)
		}
		return 1
	}
	return 0
}

func runInteractiveShell(env *Env, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		runCommand(env, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	status := 1
	defer func() {
		log.Sync()
		os.Exit(status)
	}()

	var (
		debug          bool
		noWait         bool
		pollAttempts   int
		commandTimeout time.Duration
		connTimeout    time.Duration
	)
	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		writeErr("Failed to load credential configuration: %s", err)
		return
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages. Defaults to $KIA_VERBOSE.")
	flag.BoolVar(&noWait, "no-wait", false, "Print the transaction ID instead of waiting for commands to complete")
	flag.IntVar(&pollAttempts, "poll-attempts", transaction.DefaultPolicy.MaxAttempts, "Number of transaction status checks before giving up")
	flag.DurationVar(&commandTimeout, "command-timeout", 90*time.Second, "Set timeout for each command, including waiting for completion.")
	flag.DurationVar(&connTimeout, "connect-timeout", 30*time.Second, "Set timeout for signing in.")

	config.RegisterCommandLineFlags()
	flag.Parse()
	if err := config.ReadFromEnvironment(); err != nil {
		writeErr("%s", err)
		return
	}
	if debug || config.Verbose {
		log.SetLevel(log.LevelDebug)
	}

	policy := transaction.DefaultPolicy
	policy.MaxAttempts = pollAttempts
	if err := policy.Validate(); err != nil {
		writeErr("Invalid -poll-attempts: %s", err)
		return
	}

	args := flag.Args()
	needsClient := true
	if len(args) > 0 {
		if args[0] == "help" {
			if len(args) == 1 {
				Usage()
				status = 0
				return
			}
			info, ok := commands[args[1]]
			if !ok {
				writeErr("Unrecognized command: %s", args[1])
				return
			}
			info.Usage(args[1])
			status = 0
			return
		}
		if err := configureFlags(config, args[0]); err != nil {
			writeErr("Can't run %s: %s", args[0], err)
			return
		}
		needsClient = commands[args[0]].requiresClient
	} else if config.UserID == "" {
		writeErr("Missing required flag: %s", ErrRequiresAccount)
		return
	}

	env := &Env{config: config, noWait: noWait, out: os.Stdout}
	if needsClient {
		if err := config.LoadCredentials(); err != nil {
			writeErr("Error loading credentials: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
		defer cancel()

		settings := config.ClientConfig()
		settings.Polling = policy
		client, err := config.ConnectWith(ctx, settings)
		if err != nil {
			writeErr("Error: %s", err)
			return
		}
		defer client.Close()
		env.client = client
	}

	if flag.NArg() > 0 {
		status = runCommand(env, flag.Args(), commandTimeout)
	} else {
		status = runInteractiveShell(env, commandTimeout)
	}
}
