// Package cli implements the utility-ledger command line: the API server
// and the one-shot ingest, sweep and summary commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
)

const usage = `usage: ledger <command> [flags]

commands:
  serve     run the HTTP API (and the scheduler when enabled)
  ingest    ingest a snapshot file: ledger ingest [flags] <snapshot.json>
  sweep     attribute expired pending payments to the default payee
  summary   print each bill's payee breakdown and the running balances

global flags:
  -config   configuration file path (default config.yaml)
  -verbose  verbose output
`

// Main dispatches args to a subcommand and returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	err := run(args[0], args[1:], stdout, stderr)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprint(stderr, usage)
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

var errUsage = errors.New("unknown command")

func run(cmd string, args []string, stdout, stderr io.Writer) error {
	switch cmd {
	case "serve":
		flags, err := ParseServeFlags(args, stderr)
		if err != nil {
			return err
		}
		return RunServe(flags)

	case "ingest":
		flags, err := ParseIngestFlags(args, stderr)
		if err != nil {
			return err
		}
		return withApp(flags.GlobalFlags, "ingest", func(ctx context.Context, app *App) error {
			return Ingest(ctx, app, flags.Path, stdout)
		})

	case "sweep":
		flags, err := ParseGlobalFlags(cmd, args, stderr)
		if err != nil {
			return err
		}
		return withApp(*flags, "attribution", func(ctx context.Context, app *App) error {
			return Sweep(ctx, app, stdout)
		})

	case "summary":
		flags, err := ParseGlobalFlags(cmd, args, stderr)
		if err != nil {
			return err
		}
		return withApp(*flags, "summary", func(ctx context.Context, app *App) error {
			return Summary(ctx, app, stdout)
		})

	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("%w %q", errUsage, cmd)
}
