package virtualhere

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nerrad567/vhtoggle/internal/device"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/logging"
	"github.com/nerrad567/vhtoggle/internal/process"
	"github.com/nerrad567/vhtoggle/internal/retry"
)

// IPC commands understood by the VirtualHere client.
const (
	CommandList      = "LIST"
	CommandUse       = "USE"
	CommandStopUsing = "STOP USING"
)

// ListFailureMessage is reported when no complete listing arrives in time.
const ListFailureMessage = "Failed to get device list via VirtualHere Client"

// Runner runs a binary to completion. *process.Invoker implements it.
type Runner interface {
	Run(ctx context.Context, binary string, args ...string) (string, error)
}

// FailureReporter receives the give-up message when listing keeps failing.
type FailureReporter interface {
	Failure(ctx context.Context, message string)
}

// Config configures a Client.
type Config struct {
	// Binary is the VirtualHere client executable.
	Binary string

	// Banner and Trailer delimit a complete LIST response.
	Banner  string
	Trailer string

	// Match selects the device line; InUseMarker flags it as ours.
	Match       string
	InUseMarker string

	// MaxRetries and RetryDelay bound LIST polling.
	MaxRetries int
	RetryDelay time.Duration
}

// Client queries and commands the VirtualHere client.
type Client struct {
	cfg      Config
	runner   Runner
	failures FailureReporter
	logger   *logging.Logger
}

// NewClient creates a client. Empty Banner, Trailer and InUseMarker take
// the package defaults.
func NewClient(cfg Config, runner Runner, failures FailureReporter, logger *logging.Logger) *Client {
	if cfg.Banner == "" {
		cfg.Banner = DefaultBanner
	}
	if cfg.Trailer == "" {
		cfg.Trailer = DefaultTrailer
	}
	if cfg.InUseMarker == "" {
		cfg.InUseMarker = DefaultInUseMarker
	}

	return &Client{
		cfg:      cfg,
		runner:   runner,
		failures: failures,
		logger:   logger,
	}
}

// ListDevices returns the current observation of the configured device.
//
// LIST is polled until a complete response arrives. When retries run out the
// failure reporter is told once and the device is Unavailable. Cancelling
// ctx also yields Unavailable, without a failure report.
func (c *Client) ListDevices(ctx context.Context) device.Device {
	listing, ok := retry.PollUntil(ctx,
		c.list,
		func(out string) bool {
			return IsCompleteListing(out, c.cfg.Banner, c.cfg.Trailer)
		},
		retry.Options{
			Label:      ListFailureMessage,
			MaxRetries: c.cfg.MaxRetries,
			Delay:      c.cfg.RetryDelay,
			OnGiveUp: func(label string) {
				c.logger.Warn("device list unavailable", "retries", c.cfg.MaxRetries)
				if c.failures != nil {
					c.failures.Failure(ctx, label)
				}
			},
		},
	)
	if !ok {
		return device.Unavailable()
	}

	dev := ParseListing(listing, c.cfg.Match, c.cfg.InUseMarker)
	c.logger.Debug("device listed", "match", c.cfg.Match, "device", dev.String())
	return dev
}

// list runs one LIST. A spawn failure is logged and yields empty output,
// which the completeness check rejects.
func (c *Client) list(ctx context.Context) string {
	out, err := c.command(ctx, CommandList)
	if err != nil {
		if errors.Is(err, process.ErrSpawnFailed) {
			c.logger.Warn("virtualhere client could not be started", "binary", c.cfg.Binary, "error", err)
		}
		return ""
	}
	return out
}

// Use asks the client to attach the device at address to this host.
func (c *Client) Use(ctx context.Context, address string) (string, error) {
	return c.command(ctx, CommandUse+","+address)
}

// StopUsing asks the client to release the device at address.
func (c *Client) StopUsing(ctx context.Context, address string) (string, error) {
	return c.command(ctx, CommandStopUsing+","+address)
}

// command runs `<binary> -t <cmd>` and returns trimmed output.
func (c *Client) command(ctx context.Context, cmd string) (string, error) {
	out, err := c.runner.Run(ctx, c.cfg.Binary, "-t", cmd)
	return strings.TrimSpace(out), err
}

// Probe runs one LIST and reports whether the client answered completely.
// It is used as the daemon health check.
func (c *Client) Probe(ctx context.Context) error {
	out, err := c.command(ctx, CommandList)
	if err != nil {
		return err
	}
	if !IsCompleteListing(out, c.cfg.Banner, c.cfg.Trailer) {
		return ErrIncompleteListing
	}
	return nil
}
