// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/macaroni-sandbox/macaroni/cmd/macaroni/cli"
	"github.com/macaroni-sandbox/macaroni/lib/service"
	"github.com/macaroni-sandbox/macaroni/lib/version"
)

const (
	// envAddress overrides the default daemon address.
	envAddress     = "MACARONI_ADDRESS"
	envDebug       = "MACARONI_DEBUG"
	defaultAddress = "127.0.0.1:50051"
)

// app carries the state shared by every command: where output goes and
// how to reach the daemon.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	address    string
	timeout    time.Duration
	outputJSON bool
}

func newApp(stdout, stderr io.Writer, logger *slog.Logger) *app {
	return &app{stdout: stdout, stderr: stderr, logger: logger}
}

// connectionFlags returns a flag set named name carrying the daemon
// connection flags.
func (a *app) connectionFlags(name string) *pflag.FlagSet {
	address := os.Getenv(envAddress)
	if address == "" {
		address = defaultAddress
	}
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&a.address, "address", address,
		"daemon address: host:port, or a unix socket path (env "+envAddress+")")
	flagSet.DurationVar(&a.timeout, "timeout", 0, "give up on the daemon after this long (0 waits indefinitely)")
	return flagSet
}

func (a *app) jsonFlags(name string) *pflag.FlagSet {
	flagSet := a.connectionFlags(name)
	flagSet.BoolVar(&a.outputJSON, "json", false, "output as JSON")
	return flagSet
}

// client dials unix sockets for addresses that look like paths.
func (a *app) client() *service.SandboxClient {
	network := "tcp"
	if strings.Contains(a.address, "/") {
		network = "unix"
	}
	a.logger.Debug("connecting to daemon", "network", network, "address", a.address)
	return service.NewSandboxClient(network, a.address)
}

func (a *app) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "macaroni",
		Description: "Run commands against a remapped view of the filesystem.",
		Stderr:      a.stderr,
		Subcommands: []*cli.Command{
			a.createCommand(),
			a.destroyCommand(),
			a.runCommand(),
			a.listCommand(),
			a.statusCommand(),
			a.versionCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Expose /Volumes/Stuff/foo as /foo",
				Command:     "macaroni create --mount /foo=/Volumes/Stuff/foo",
			},
			{
				Command: "macaroni run 3f0c... -- ls /foo",
			},
		},
	}
}

func (a *app) createCommand() *cli.Command {
	var mounts []string
	return &cli.Command{
		Name:    "create",
		Summary: "Create a sandbox and print its id",
		Description: `Create a sandbox from a list of mounts. Each --mount maps a virtual
destination to a host path. Mounts are matched in the order given.
An empty destination ("=/host") matches every path.`,
		Usage: "macaroni create [--mount DEST=HOST]... [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.jsonFlags("create")
			flagSet.StringArrayVar(&mounts, "mount", nil, "mount as DEST=HOST (repeatable)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("create takes no arguments, got %q", args)
			}
			specs, err := parseMounts(mounts)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(ctx)
			defer cancel()
			id, err := a.client().Create(ctx, specs)
			if err != nil {
				return err
			}
			if a.outputJSON {
				return cli.WriteJSON(a.stdout, service.CreateResponse{ID: id})
			}
			fmt.Fprintln(a.stdout, id)
			return nil
		},
	}
}

// parseMounts turns DEST=HOST flag values into mount specs.
func parseMounts(values []string) ([]service.MountSpec, error) {
	specs := make([]service.MountSpec, 0, len(values))
	for _, value := range values {
		destination, host, ok := strings.Cut(value, "=")
		if !ok || host == "" {
			return nil, fmt.Errorf("invalid --mount %q: want DEST=HOST", value)
		}
		specs = append(specs, service.MountSpec{DestinationPath: destination, HostPath: host})
	}
	return specs, nil
}

func (a *app) destroyCommand() *cli.Command {
	return &cli.Command{
		Name:    "destroy",
		Summary: "Destroy a sandbox",
		Usage:   "macaroni destroy <id> [flags]",
		Flags:   func() *pflag.FlagSet { return a.connectionFlags("destroy") },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("destroy takes exactly one sandbox id")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(ctx)
			defer cancel()
			return a.client().Destroy(ctx, id)
		},
	}
}

func (a *app) runCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Summary: "Run a command inside a sandbox",
		Description: `Run a command inside a sandbox and relay its output. macaroni exits
with the command's exit status.`,
		Usage: "macaroni run [flags] <id> -- <command> [args...]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.connectionFlags("run")
			flagSet.SetInterspersed(false)
			return flagSet
		},
		Examples: []cli.Example{
			{Command: "macaroni run 3f0c... -- cat /foo/notes.txt"},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 && args[0] == "--" {
				args = args[1:]
			}
			if len(args) < 2 {
				return fmt.Errorf("run needs a sandbox id and a command")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			command := args[1:]
			if command[0] == "--" {
				command = command[1:]
			}
			if len(command) == 0 {
				return fmt.Errorf("run needs a command after %q", "--")
			}

			ctx, cancel := a.context(ctx)
			defer cancel()
			result, err := a.client().RunCommand(ctx, id, command)
			if err != nil {
				return err
			}
			a.stdout.Write(result.Stdout)
			a.stderr.Write(result.Stderr)
			if result.StdoutTruncated || result.StderrTruncated {
				fmt.Fprintln(a.stderr, "macaroni: output truncated")
			}
			if result.TimedOut {
				fmt.Fprintln(a.stderr, "macaroni: command timed out")
			}
			if result.ExitCode != 0 {
				return &cli.ExitError{Code: result.ExitCode}
			}
			return nil
		},
	}
}

func (a *app) listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "List sandboxes",
		Flags:   func() *pflag.FlagSet { return a.jsonFlags("list") },
		Run: func(ctx context.Context, args []string) error {
			ctx, cancel := a.context(ctx)
			defer cancel()
			sandboxes, err := a.client().List(ctx)
			if err != nil {
				return err
			}
			if a.outputJSON {
				return cli.WriteJSON(a.stdout, sandboxes)
			}
			tw := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tMOUNTS")
			for _, sandbox := range sandboxes {
				mounts := make([]string, 0, len(sandbox.Mounts))
				for _, m := range sandbox.Mounts {
					mounts = append(mounts, m.DestinationPath+"="+m.HostPath)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", sandbox.ID,
					sandbox.CreatedAt.Local().Format(time.DateTime), strings.Join(mounts, ","))
			}
			return tw.Flush()
		},
	}
}

func (a *app) statusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Flags:   func() *pflag.FlagSet { return a.jsonFlags("status") },
		Run: func(ctx context.Context, args []string) error {
			ctx, cancel := a.context(ctx)
			defer cancel()
			status, err := a.client().Status(ctx)
			if err != nil {
				return err
			}
			if a.outputJSON {
				return cli.WriteJSON(a.stdout, status)
			}
			fmt.Fprintf(a.stdout, "version:   %s\nsandboxes: %d\nuptime:    %s\n",
				status.Version, status.Sandboxes, time.Duration(status.UptimeSeconds)*time.Second)
			return nil
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(ctx context.Context, args []string) error {
			fmt.Fprintf(a.stdout, "macaroni %s\n", version.Full())
			return nil
		},
	}
}

func parseID(text string) (uuid.UUID, error) {
	id, err := uuid.Parse(text)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid sandbox id %q: %w", text, err)
	}
	return id, nil
}
