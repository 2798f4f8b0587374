package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/vhtoggle/internal/api"
	"github.com/nerrad567/vhtoggle/internal/controller"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/mqtt"
	"github.com/nerrad567/vhtoggle/internal/process"
)

// pruneInterval is how often old history rows are removed in watch mode.
const pruneInterval = 6 * time.Hour

// runWatch keeps the stored state fresh until ctx is done. It optionally
// supervises the VirtualHere daemon, serves the control API and listens on
// the MQTT command topic. All of them feed one trigger channel consumed by
// controller.Watch, so cycles never overlap.
func runWatch(ctx context.Context, e env, args []string) error {
	fset := newFlagSet("watch", e)
	if err := parseFlags(fset, args); err != nil {
		return err
	}

	a, err := newApp(ctx, e)
	if err != nil {
		return err
	}
	defer a.close()

	cfg, log := a.cfg, a.log
	triggers := make(chan controller.Mode, cfg.Watch.TriggerBuffer)

	// The dispatcher is read concurrently once the daemon or any cycle runs,
	// so every sink is added first.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		a.dispatcher.AddSink(hub)
	}

	if cfg.VirtualHere.Managed {
		daemon, err := startDaemon(ctx, a)
		if err != nil {
			return fmt.Errorf("starting VirtualHere daemon: %w", err)
		}
		defer func() {
			log.Info("stopping VirtualHere daemon")
			if stopErr := daemon.Stop(); stopErr != nil {
				log.Error("error stopping VirtualHere daemon", "error", stopErr)
			}
		}()
	}

	if a.mqtt != nil {
		if err := subscribeCommands(a, triggers); err != nil {
			log.Warn("MQTT command topic unavailable", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if hub != nil {
		server, err := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.Component("api"),
			DeviceID:   cfg.Device.ID,
			DeviceName: cfg.Device.DisplayName,
			Outcomes:   a.ctrl,
			Store:      a.store,
			History:    a.history,
			Triggers:   triggers,
			Hub:        hub,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.Close()
		})
	}

	g.Go(func() error {
		return a.ctrl.Watch(gctx, cfg.WatchInterval(), triggers)
	})

	if retention := cfg.HistoryRetention(); retention > 0 {
		g.Go(func() error {
			pruneHistory(gctx, a, retention)
			return nil
		})
	}

	log.Info("watch mode running",
		"device", cfg.Device.DisplayName,
		"interval", cfg.WatchInterval(),
		"api", cfg.API.Enabled,
		"mqtt", a.mqtt != nil,
		"managed_daemon", cfg.VirtualHere.Managed,
	)

	err = g.Wait()
	log.Info("watch mode stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startDaemon launches the VirtualHere client daemon under supervision,
// using a LIST round trip as its health probe.
func startDaemon(ctx context.Context, a *app) (*process.Manager, error) {
	vh := a.cfg.VirtualHere

	pcfg := process.DefaultConfig("virtualhere", vh.Binary, vh.DaemonArgs)
	pcfg.RestartDelay = time.Duration(vh.RestartDelaySeconds) * time.Second
	pcfg.MaxRestartAttempts = vh.MaxRestartAttempts
	pcfg.Probe = a.vh.Probe
	pcfg.OnExit = func(err error) {
		if err != nil {
			a.dispatcher.Failure(context.Background(), "VirtualHere Client exited: "+err.Error())
		}
	}

	daemon := process.NewManager(pcfg)
	daemon.SetLogger(a.log.Component("daemon"))
	if err := daemon.Start(ctx); err != nil {
		return nil, err
	}

	a.log.Info("VirtualHere daemon started", "pid", daemon.PID(), "binary", vh.Binary)
	return daemon, nil
}

// subscribeCommands turns messages on vhtoggle/command/<id> into triggers.
// Payloads are "toggle" or "refresh".
func subscribeCommands(a *app, triggers chan<- controller.Mode) error {
	topic := mqtt.Topics{}.Command(a.cfg.Device.ID)
	log := a.log.Component("mqtt")

	err := a.mqtt.Subscribe(topic, byte(a.cfg.MQTT.QoS), func(_ string, payload []byte) error { //nolint:gosec // QoS validated 0-2
		mode, err := controller.ParseMode(strings.TrimSpace(string(payload)))
		if err != nil {
			return fmt.Errorf("command payload: %w", err)
		}
		if !controller.Trigger(triggers, mode) {
			log.Warn("trigger queue full, dropping MQTT command", "mode", mode.String())
			return nil
		}
		log.Info("cycle queued", "mode", mode.String(), "source", "mqtt")
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("listening for commands", "topic", topic)
	return nil
}

// pruneHistory removes history older than retention now and every pruneInterval.
func pruneHistory(ctx context.Context, a *app, retention time.Duration) {
	prune := func() {
		n, err := a.history.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				a.log.Warn("history prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			a.log.Info("history pruned", "rows", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
