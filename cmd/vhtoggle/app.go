package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nerrad567/vhtoggle/internal/controller"
	"github.com/nerrad567/vhtoggle/internal/device"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/config"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/database"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/influxdb"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/logging"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/mqtt"
	"github.com/nerrad567/vhtoggle/internal/notify"
	"github.com/nerrad567/vhtoggle/internal/process"
	"github.com/nerrad567/vhtoggle/internal/virtualhere"
	"github.com/nerrad567/vhtoggle/migrations"
)

// env is what every command receives.
type env struct {
	cfg    *config.Config
	log    *logging.Logger
	stdout io.Writer
	stderr io.Writer
}

// app holds the wired components for commands that run cycles.
type app struct {
	cfg        *config.Config
	log        *logging.Logger
	db         *database.DB
	store      device.StateStore
	history    *device.SQLiteStateHistoryRepository
	dispatcher *notify.Dispatcher
	vh         *virtualhere.Client
	ctrl       *controller.Controller
	mqtt       *mqtt.Client     // nil when disabled or unreachable
	influx     *influxdb.Client // nil when disabled or unreachable

	closers []func()
}

// openDatabase opens the state database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("database ready", "path", cfg.Database.Path)

	return db, nil
}

// newApp wires storage, notification sinks, the VirtualHere client and the
// controller. Optional sinks that cannot connect are logged and skipped.
//
// Parameters:
//   - ctx: Context for connection setup
//   - e: Loaded configuration and logger
//
// Returns:
//   - *app: Wired components; call close when done
//   - error: If the database cannot be opened or migrated
func newApp(ctx context.Context, e env) (*app, error) {
	cfg, log := e.cfg, e.log

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		store:   device.NewSQLiteStateStore(db.DB, device.DefaultStateSlot),
		history: device.NewSQLiteStateHistoryRepository(db.DB),
	}
	a.onClose(func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	})

	a.dispatcher = notify.NewDispatcher(cfg.Device.ID, cfg.Device.DisplayName,
		log.Component("notify"),
		notify.NewLogSink(log.Component("notify")),
	)
	a.connectSinks()

	invoker := process.NewInvoker(log.Component("process"))
	a.vh = virtualhere.NewClient(virtualhere.Config{
		Binary:      cfg.VirtualHere.Binary,
		Banner:      cfg.VirtualHere.Banner,
		Trailer:     cfg.VirtualHere.Trailer,
		Match:       cfg.Device.Match,
		InUseMarker: cfg.Device.InUseMarker,
		MaxRetries:  cfg.Polling.MaxRetries,
		RetryDelay:  cfg.RetryDelay(),
	}, invoker, a.dispatcher, log.Component("virtualhere"))

	a.ctrl = controller.New(controller.Config{
		DeviceID:    cfg.Device.ID,
		DeviceName:  cfg.Device.DisplayName,
		SettleDelay: cfg.SettleDelay(),
	}, controller.Deps{
		Query:    a.vh,
		Store:    a.store,
		History:  a.history,
		Notifier: a.dispatcher,
		Logger:   log.Component("controller"),
	})

	return a, nil
}

// connectSinks adds the optional desktop, MQTT and InfluxDB sinks.
func (a *app) connectSinks() {
	cfg, log := a.cfg, a.log

	if cfg.Notify.Desktop {
		desktop, err := notify.NewDesktopSink(cfg.Notify.AppName, int32(cfg.Notify.ExpireMs)) //nolint:gosec // Validated small value
		if err != nil {
			log.Warn("desktop notifications unavailable", "error", err)
		} else {
			a.dispatcher.AddSink(desktop)
			a.onClose(func() {
				if closeErr := desktop.Close(); closeErr != nil {
					log.Debug("error closing session bus", "error", closeErr)
				}
			})
		}
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, continuing without it", "error", err)
		} else {
			client.SetLogger(log.Component("mqtt"))
			a.mqtt = client
			a.dispatcher.AddSink(notify.NewMQTTSink(client))
			a.onClose(func() {
				if closeErr := client.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			})
			log.Debug("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, continuing without it", "error", err)
		} else {
			client.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			a.influx = client
			a.dispatcher.AddSink(notify.NewInfluxSink(client))
			a.onClose(func() {
				if closeErr := client.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			})
		}
	}
}

// onClose registers cleanup; closers run in reverse order.
func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close releases everything newApp opened.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
