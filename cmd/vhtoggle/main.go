// vhtoggle - VirtualHere USB device toggle
//
// This is the main entry point for vhtoggle. It attaches or detaches one USB
// peripheral shared by a VirtualHere server through the local VirtualHere
// client, shows the resulting state, and remembers the last observed state.
//
// Usage:
//
//	vhtoggle [-config path] [toggle|status|watch|history|token] [flags]
//
// Without a command, vhtoggle toggles the device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/vhtoggle/internal/infrastructure/config"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the configuration file path.
const configEnvVar = "VHTOGGLE_CONFIG"

// errUsage marks command line mistakes; the usage text was already printed.
var errUsage = errors.New("invalid usage")

func main() {
	// Cancel on Ctrl+C or SIGTERM so retry and settle waits stop promptly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run parses the command line and executes one command.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//   - stdout: Destination for command output
//   - stderr: Destination for usage text
//
// Returns:
//   - error: nil on success, or error describing failure
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fset := flag.NewFlagSet("vhtoggle", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", "", "path to config file (default $"+configEnvVar+" or "+defaultConfigPath+")")
	showVersion := fset.Bool("version", false, "print version and exit")
	fset.Usage = func() { usage(fset) }

	if err := fset.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "vhtoggle %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	name := "toggle"
	rest := fset.Args()
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(fset)
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("vhtoggle starting",
		"command", name,
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	return cmd.run(ctx, env{cfg: cfg, log: log, stdout: stdout, stderr: stderr}, rest)
}

// loadConfig resolves the config path and loads it.
// A missing file is only tolerated at the default path.
func loadConfig(flagPath string) (*config.Config, error) {
	path, explicit := getConfigPath(flagPath)

	cfg, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.LoadDefaults()
	}
	return cfg, err
}

// getConfigPath returns the configuration file path and whether the user
// chose it. The -config flag wins over VHTOGGLE_CONFIG, which wins over the default.
func getConfigPath(flagPath string) (string, bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

func usage(fset *flag.FlagSet) {
	out := fset.Output()
	fmt.Fprintln(out, "Usage: vhtoggle [flags] [command] [command flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(out, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	fset.PrintDefaults()
}
