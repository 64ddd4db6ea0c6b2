package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huttotw/kia-connect/pkg/action"
	"github.com/huttotw/kia-connect/pkg/cli"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/vehicle"
)

var (
	ErrCommandLineArgs = errors.New("invalid command line arguments")
	ErrInvalidSetpoint = errors.New("invalid temperature")
	ErrRequiresVIN     = errors.New("command requires a VIN")
	ErrRequiresAccount = errors.New("command requires an account user ID")
	ErrUnknownCommand  = errors.New("unrecognized command")
	ErrNotInitialized  = errors.New("not signed in")
)

const minimumWatchPeriod = time.Minute

var setpointKeywords = map[string]bool{"LOW": true, "HIGH": true}

type Argument struct {
	name string
	help string
}

// Env is the state shared by every command in a single invocation or shell.
type Env struct {
	config *cli.Config
	client *vehicle.Client
	noWait bool
	out    io.Writer
}

func (e *Env) car() *vehicle.Vehicle {
	return e.client.Vehicle(e.config.VIN)
}

type Handler func(ctx context.Context, env *Env, args map[string]string) error

type Command struct {
	help           string
	requiresVIN    bool // True if command targets a single vehicle
	requiresClient bool // False for commands that only touch local credential storage
	longRunning    bool // True if command runs until interrupted instead of under -command-timeout
	args           []Argument
	optional       []Argument
	handler        Handler
}

// ParseSetpoint converts a command-line temperature into the form the portal accepts. Numbers are
// Fahrenheit and may carry an F suffix. Values outside the supported range become LOW or HIGH.
func ParseSetpoint(value string) (string, error) {
	canonical := strings.ToUpper(strings.TrimSpace(value))
	if setpointKeywords[canonical] {
		return canonical, nil
	}
	degrees, err := strconv.Atoi(strings.TrimSuffix(canonical, "F"))
	if err != nil {
		return "", fmt.Errorf("%w: '%s' (use degrees Fahrenheit, LOW or HIGH)", ErrInvalidSetpoint, value)
	}
	return action.TemperatureF(degrees), nil
}

// ParseWatchPeriod parses the refresh interval of the watch command.
func ParseWatchPeriod(value string) (time.Duration, error) {
	period, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
	}
	if period < minimumWatchPeriod {
		return 0, fmt.Errorf("%w: refresh interval must be at least %s", ErrCommandLineArgs, minimumWatchPeriod)
	}
	return period, nil
}

// configureFlags verifies that c contains all the information required to execute a command.
func configureFlags(c *cli.Config, commandName string) error {
	info, ok := commands[commandName]
	if !ok {
		return ErrUnknownCommand
	}
	_, err := checkReadiness(commandName, c.UserID != "", c.VIN != "")
	if err != nil {
		return err
	}
	if !info.requiresClient {
		// Local commands never need to sign in, so don't prompt for a password.
		c.Flags = cli.FlagAccount | cli.FlagKeyring
	}
	return nil
}

func checkReadiness(commandName string, haveAccount, haveVIN bool) (*Command, error) {
	info, ok := commands[commandName]
	if !ok {
		return nil, ErrUnknownCommand
	}
	if !haveAccount {
		return nil, ErrRequiresAccount
	}
	if info.requiresVIN && !haveVIN {
		return nil, ErrRequiresVIN
	}
	return info, nil
}

func execute(ctx context.Context, env *Env, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}

	info, err := checkReadiness(args[0], env.config.UserID != "", env.config.VIN != "")
	if err != nil {
		return err
	}
	if info.requiresClient && env.client == nil {
		return ErrNotInitialized
	}

	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args)-1, len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := make(map[string]string)
		for i, argInfo := range info.args {
			keywords[argInfo.name] = args[i+1]
		}
		index := len(info.args) + 1
		for _, argInfo := range info.optional {
			if index >= len(args) {
				break
			}
			keywords[argInfo.name] = args[index]
			index++
		}
		err = info.handler(ctx, env, keywords)
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(args[0])
	}
	return err
}

func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" [")
	}
	for _, arg := range c.optional {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" ]")
	}
	fmt.Printf("\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

// settle reports the fate of a command. With -no-wait it only prints the transaction ID.
func settle(ctx context.Context, env *Env, completion *vehicle.Completion) error {
	if env.noWait {
		fmt.Fprintf(env.out, "Submitted transaction %s\n", completion.Transaction.ID)
		return nil
	}
	defer completion.Cancel()
	if _, err := completion.Wait(ctx); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Completed transaction %s\n", completion.Transaction.ID)
	return nil
}

var commands = map[string]*Command{
	"list": &Command{
		help:           "List vehicles registered to the account",
		requiresClient: true,
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			vehicles, err := env.client.VehicleList(ctx)
			if err != nil {
				return err
			}
			for _, v := range vehicles {
				fmt.Fprintf(env.out, "%s\t%s\t%s %s\n", v.VIN, v.NickName, v.ModelYear, v.ModelName)
			}
			return nil
		},
	},
	"info": &Command{
		help:           "Print the latest vehicle report as JSON",
		requiresVIN:    true,
		requiresClient: true,
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			info, err := env.car().Info(ctx)
			if err != nil {
				return err
			}
			return printJSON(env.out, info)
		},
	},
	"status": &Command{
		help:           "Summarize locks, closures, battery and climate",
		requiresVIN:    true,
		requiresClient: true,
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			status, err := env.car().Status(ctx)
			if err != nil {
				return err
			}
			return printJSON(env.out, status)
		},
	},
	"lock": &Command{
		help:           "Lock vehicle",
		requiresVIN:    true,
		requiresClient: true,
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			completion, err := env.car().Lock(ctx)
			if err != nil {
				return err
			}
			return settle(ctx, env, completion)
		},
	},
	"unlock": &Command{
		help:           "Unlock vehicle",
		requiresVIN:    true,
		requiresClient: true,
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			completion, err := env.car().Unlock(ctx)
			if err != nil {
				return err
			}
			return settle(ctx, env, completion)
		},
	},
	"climate-on": &Command{
		help:           "Start climate control",
		requiresVIN:    true,
		requiresClient: true,
		optional: []Argument{
			Argument{name: "TEMP", help: "Setpoint in Fahrenheit, LOW or HIGH (defaults to -temperature)"},
		},
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			car := env.car()
			if temp, ok := args["TEMP"]; ok {
				setpoint, err := ParseSetpoint(temp)
				if err != nil {
					return fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
				}
				car.SetTargetTemperature(setpoint)
			}
			completion, err := car.StartClimate(ctx)
			if err != nil {
				return err
			}
			return settle(ctx, env, completion)
		},
	},
	"climate-off": &Command{
		help:           "Stop climate control",
		requiresVIN:    true,
		requiresClient: true,
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			completion, err := env.car().StopClimate(ctx)
			if err != nil {
				return err
			}
			return settle(ctx, env, completion)
		},
	},
	"transaction": &Command{
		help:           "Check whether a command submitted with -no-wait is still executing",
		requiresVIN:    true,
		requiresClient: true,
		args: []Argument{
			Argument{name: "XID", help: "Transaction ID printed when the command was submitted"},
		},
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			outcome, err := env.client.TransactionStatus(ctx, env.config.VIN, args["XID"])
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out, "%s\n", outcome)
			return nil
		},
	},
	"watch": &Command{
		help:           "Print the vehicle summary now, after every command, and on every INTERVAL",
		requiresVIN:    true,
		requiresClient: true,
		longRunning:    true,
		optional: []Argument{
			Argument{name: "INTERVAL", help: "Refresh interval (e.g., 30m; defaults to 1h)"},
		},
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			period := vehicle.DefaultRefreshInterval
			if value, ok := args["INTERVAL"]; ok {
				var err error
				if period, err = ParseWatchPeriod(value); err != nil {
					return err
				}
			}
			err := env.car().Watch(ctx, period, func(info *protocol.VehicleInfo, err error) {
				if err != nil {
					writeErr("Refresh failed: %s", err)
					return
				}
				if err := printJSON(env.out, vehicle.Summarize(info)); err != nil {
					writeErr("Couldn't print status: %s", err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	},
	"save-password": &Command{
		help: "Store the account password in the system keyring",
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			password, err := cli.PromptPassword(fmt.Sprintf("Password for %s", env.config.UserID))
			if err != nil {
				return err
			}
			if err := env.config.SavePassword(password); err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Saved password for %s\n", env.config.UserID)
			return nil
		},
	},
	"delete-password": &Command{
		help: "Remove the account password from the system keyring",
		handler: func(ctx context.Context, env *Env, args map[string]string) error {
			return env.config.DeletePassword()
		},
	},
}
