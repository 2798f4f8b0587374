package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/nerrad567/vhtoggle/internal/auth"
	"github.com/nerrad567/vhtoggle/internal/controller"
	"github.com/nerrad567/vhtoggle/internal/device"
)

// command is one subcommand.
type command struct {
	summary string
	run     func(ctx context.Context, e env, args []string) error
}

var commands = map[string]command{
	"toggle":  {"attach the device if detached, detach it if attached (default)", runCycleCommand(controller.ModeInteractive)},
	"status":  {"refresh and show the device state without toggling", runCycleCommand(controller.ModeBackground)},
	"watch":   {"keep the state fresh and serve the control API", runWatch},
	"history": {"print recent state transitions as JSON", runHistory},
	"token":   {"mint a bearer token for the control API", runToken},
}

var commandOrder = []string{"toggle", "status", "watch", "history", "token"}

// newFlagSet creates a subcommand flag set that reports errors to stderr.
func newFlagSet(name string, e env) *flag.FlagSet {
	fset := flag.NewFlagSet("vhtoggle "+name, flag.ContinueOnError)
	fset.SetOutput(e.stderr)
	return fset
}

// parseFlags parses subcommand flags and rejects positional arguments.
func parseFlags(fset *flag.FlagSet, args []string) error {
	if err := fset.Parse(args); err != nil {
		return errUsage
	}
	if fset.NArg() > 0 {
		fmt.Fprintf(fset.Output(), "unexpected arguments: %v\n", fset.Args())
		return errUsage
	}
	return nil
}

// runCycleCommand runs exactly one cycle in mode and prints the result.
func runCycleCommand(mode controller.Mode) func(ctx context.Context, e env, args []string) error {
	return func(ctx context.Context, e env, args []string) error {
		fset := newFlagSet(mode.String(), e)
		asJSON := fset.Bool("json", false, "print the cycle outcome as JSON")
		if err := parseFlags(fset, args); err != nil {
			return err
		}

		a, err := newApp(ctx, e)
		if err != nil {
			return err
		}
		defer a.close()

		outcome, err := a.ctrl.RunCycle(ctx, mode)
		if err != nil {
			return fmt.Errorf("%s cycle: %w", mode, err)
		}

		return printOutcome(e.stdout, e.cfg.Device.DisplayName, outcome, *asJSON)
	}
}

// printOutcome writes "<name>: <Label>" or the outcome as JSON.
func printOutcome(w io.Writer, name string, outcome controller.Outcome, asJSON bool) error {
	if asJSON {
		return writeJSON(w, outcome)
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", name, outcome.Device.State().Label())
	return err
}

// runHistory prints the newest transitions. It needs only the database.
func runHistory(ctx context.Context, e env, args []string) error {
	fset := newFlagSet("history", e)
	limit := fset.Int("limit", 20, "maximum number of entries (1-200)")
	if err := parseFlags(fset, args); err != nil {
		return err
	}

	db, err := openDatabase(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only use

	entries, err := device.NewSQLiteStateHistoryRepository(db.DB).GetHistory(ctx, e.cfg.Device.ID, *limit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if entries == nil {
		entries = []device.StateHistoryEntry{}
	}

	return writeJSON(e.stdout, entries)
}

// runToken prints a signed API token.
func runToken(_ context.Context, e env, args []string) error {
	fset := newFlagSet("token", e)
	subject := fset.String("subject", "", "token holder name (required)")
	scopeName := fset.String("scope", string(auth.ScopeRead), "token scope: read or control")
	ttl := fset.Duration("ttl", auth.DefaultTTL, "token lifetime")
	if err := parseFlags(fset, args); err != nil {
		return err
	}

	if e.cfg.API.JWTSecret == "" {
		return errors.New("api.jwt_secret is not set; tokens are not needed")
	}

	scope, err := auth.ParseScope(*scopeName)
	if err != nil {
		return err
	}

	token, err := auth.GenerateToken(*subject, scope, e.cfg.API.JWTSecret, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	_, err = fmt.Fprintln(e.stdout, token)
	return err
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
