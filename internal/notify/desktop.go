package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsBus   = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsIface = "org.freedesktop.Notifications"

	// Urgency hint values defined by freedesktop notifications.
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// caller is the part of dbus.BusObject the desktop sink uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// DesktopSink shows freedesktop notifications over the session bus.
//
// All events reuse one notification id so a toast is replaced by the
// following HUD message instead of stacking.
type DesktopSink struct {
	conn     *dbus.Conn
	obj      caller
	appName  string
	expireMs int32

	mu     sync.Mutex
	lastID uint32
}

// NewDesktopSink connects to the session bus.
//
// Parameters:
//   - appName: Application name shown by the notification daemon
//   - expireMs: Display time; -1 lets the daemon decide
func NewDesktopSink(appName string, expireMs int32) (*DesktopSink, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	return &DesktopSink{
		conn:     conn,
		obj:      conn.Object(notificationsBus, notificationsPath),
		appName:  appName,
		expireMs: expireMs,
	}, nil
}

// Close releases the bus connection.
func (s *DesktopSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Name implements Sink.
func (*DesktopSink) Name() string { return "desktop" }

// Notify implements Sink.
//
// State changes show the message as summary and the label as body.
// Progress and failure are summary-only; failures are marked critical.
func (s *DesktopSink) Notify(ctx context.Context, ev Event) error {
	summary := ev.Message
	body := ""
	urgency := urgencyNormal

	switch ev.Kind {
	case KindStateChanged:
		body = ev.Label
	case KindFailure:
		urgency = urgencyCritical
	case KindProgress:
		urgency = urgencyLow
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgency),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id uint32
	err := s.obj.CallWithContext(ctx, notificationsIface+".Notify", 0,
		s.appName,
		s.lastID,
		"input-keyboard",
		summary,
		body,
		[]string{},
		hints,
		s.expireMs,
	).Store(&id)
	if err != nil {
		return fmt.Errorf("desktop notify: %w", err)
	}

	s.lastID = id
	return nil
}
