package cli

import (
	"flag"
	"io"

	"github.com/eshaffer321/utility-ledger/internal/infrastructure/config"
)

// GlobalFlags are accepted by every subcommand
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
}

// newFlagSet creates a subcommand flag set with the global flags registered
func newFlagSet(name string, out io.Writer, g *GlobalFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&g.ConfigPath, "config", "config.yaml", "Configuration file path")
	fs.BoolVar(&g.Verbose, "verbose", false, "Verbose output")
	return fs
}

// LoadConfig reads the config file (falling back to the environment),
// applies -verbose and validates the result.
func (g GlobalFlags) LoadConfig() (*config.Config, error) {
	cfg := config.LoadOrEnvWithPath(g.ConfigPath)
	if g.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	GlobalFlags
	Port     int
	Schedule bool
}

// ParseServeFlags parses command line flags for the serve command.
// Zero values leave the config file in charge.
func ParseServeFlags(args []string, out io.Writer) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := newFlagSet("serve", out, &flags.GlobalFlags)
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (overrides server.port)")
	fs.BoolVar(&flags.Schedule, "schedule", false, "Run the resync and sweep timers (overrides scheduler.enabled)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// IngestFlags holds the CLI flags for the ingest command.
type IngestFlags struct {
	GlobalFlags
	Path string
}

// ParseIngestFlags parses `ingest [flags] <snapshot.json>`. Without a path
// the configured scheduler.snapshot_path is used.
func ParseIngestFlags(args []string, out io.Writer) (*IngestFlags, error) {
	flags := &IngestFlags{}
	fs := newFlagSet("ingest", out, &flags.GlobalFlags)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	flags.Path = fs.Arg(0)
	return flags, nil
}

// ParseGlobalFlags parses subcommands that take only the global flags.
func ParseGlobalFlags(name string, args []string, out io.Writer) (*GlobalFlags, error) {
	flags := &GlobalFlags{}
	fs := newFlagSet(name, out, flags)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}
