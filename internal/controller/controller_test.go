package controller

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/vhtoggle/internal/device"
	"github.com/nerrad567/vhtoggle/internal/notify"
)

const testName = "Wooting 60HE+"

// fakeQuery returns scripted observations and records commands.
type fakeQuery struct {
	mu       sync.Mutex
	devices  []device.Device // consumed in order; the last one repeats
	commands []string
	lists    int
}

func (q *fakeQuery) ListDevices(context.Context) device.Device {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.lists++
	if len(q.devices) == 0 {
		return device.Unavailable()
	}
	dev := q.devices[0]
	if len(q.devices) > 1 {
		q.devices = q.devices[1:]
	}
	return dev
}

func (q *fakeQuery) Use(_ context.Context, address string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, "USE,"+address)
	return "OK", nil
}

func (q *fakeQuery) StopUsing(_ context.Context, address string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, "STOP USING,"+address)
	return "OK", nil
}

// recordingNotifier records every notification as "<kind>:<message>".
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	labels []string
}

func (n *recordingNotifier) Progress(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "progress:"+message)
}

func (n *recordingNotifier) Failure(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "failure:"+message)
}

func (n *recordingNotifier) StateChanged(_ context.Context, change notify.StateChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "state:"+change.Message)
	n.labels = append(n.labels, change.Label)
}

// fakeHistory records transitions.
type fakeHistory struct {
	entries []device.StateHistoryEntry
	err     error
}

func (h *fakeHistory) RecordStateChange(_ context.Context, deviceID string, previous *device.State, dev device.Device, source string) error {
	if h.err != nil {
		return h.err
	}
	addr, _ := dev.Address()
	h.entries = append(h.entries, device.StateHistoryEntry{
		DeviceID: deviceID, Previous: previous, State: dev.State(), Address: addr, Source: source,
	})
	return nil
}

func (h *fakeHistory) GetHistory(context.Context, string, int) ([]device.StateHistoryEntry, error) {
	return h.entries, nil
}

// failingStore fails Load or Save.
type failingStore struct {
	loadErr, saveErr error
}

func (s failingStore) Load(context.Context) (device.State, bool, error) {
	return device.StateUnavailable, false, s.loadErr
}

func (s failingStore) Save(context.Context, device.State) error { return s.saveErr }

type harness struct {
	query    *fakeQuery
	store    *device.MemoryStateStore
	history  *fakeHistory
	notifier *recordingNotifier
	ctrl     *Controller
}

func newHarness(devices ...device.Device) *harness {
	h := &harness{
		query:    &fakeQuery{devices: devices},
		store:    device.NewMemoryStateStore(),
		history:  &fakeHistory{},
		notifier: &recordingNotifier{},
	}
	h.ctrl = New(Config{DeviceID: "kbd", DeviceName: testName, SettleDelay: time.Millisecond}, Deps{
		Query:    h.query,
		Store:    h.store,
		History:  h.history,
		Notifier: h.notifier,
	})
	return h
}

func (h *harness) seed(t *testing.T, s device.State) {
	t.Helper()
	if err := h.store.Save(context.Background(), s); err != nil {
		t.Fatal(err)
	}
}

func TestRunCycle_InteractiveToggles(t *testing.T) {
	tests := []struct {
		name        string
		before      device.Device
		after       device.Device
		wantCommand string
		wantEvents  []string
	}{
		{
			name:        "connected is released",
			before:      device.Connected("kbd.1"),
			after:       device.Disconnected("kbd.1"),
			wantCommand: "STOP USING,kbd.1",
			wantEvents: []string{
				"state:Wooting 60HE+ connected",
				"progress:Disconnecting Wooting 60HE+...",
				"state:Wooting 60HE+ disconnected",
			},
		},
		{
			name:        "disconnected is attached",
			before:      device.Disconnected("kbd.1"),
			after:       device.Connected("kbd.1"),
			wantCommand: "USE,kbd.1",
			wantEvents: []string{
				"state:Wooting 60HE+ disconnected",
				"progress:Connecting Wooting 60HE+...",
				"state:Wooting 60HE+ connected",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.before, tt.after)

			out, err := h.ctrl.RunCycle(context.Background(), ModeInteractive)
			if err != nil {
				t.Fatalf("RunCycle() error = %v", err)
			}

			if !slices.Equal(h.query.commands, []string{tt.wantCommand}) {
				t.Errorf("commands = %v, want [%s]", h.query.commands, tt.wantCommand)
			}
			if !slices.Equal(h.notifier.events, tt.wantEvents) {
				t.Errorf("events = %v, want %v", h.notifier.events, tt.wantEvents)
			}
			if h.query.lists != 2 {
				t.Errorf("ListDevices called %d times, want 2", h.query.lists)
			}
			if !out.Toggled || out.Target == nil || *out.Target != tt.after.State() {
				t.Errorf("outcome = %+v, want toggled to %v", out, tt.after.State())
			}
			if out.Device != tt.after {
				t.Errorf("outcome device = %v, want %v", out.Device, tt.after)
			}
			if out.CycleID == "" {
				t.Error("outcome has no cycle id")
			}

			stored, ok, _ := h.store.Load(context.Background())
			if !ok || stored != tt.after.State() {
				t.Errorf("stored = %v, %v; want %v", stored, ok, tt.after.State())
			}
		})
	}
}

func TestRunCycle_AtMostOneToggle(t *testing.T) {
	// The command has no effect; the follow-up observation must not toggle again.
	h := newHarness(device.Connected("kbd.1"))
	h.seed(t, device.StateConnected)

	out, err := h.ctrl.RunCycle(context.Background(), ModeInteractive)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(h.query.commands) != 1 {
		t.Errorf("commands = %v, want exactly one", h.query.commands)
	}
	if out.Changed {
		t.Error("Changed = true for an unchanged device")
	}
	if !slices.Equal(h.notifier.events, []string{"progress:Disconnecting Wooting 60HE+..."}) {
		t.Errorf("events = %v", h.notifier.events)
	}
}

func TestRunCycle_Unavailable(t *testing.T) {
	h := newHarness(device.Unavailable())

	out, err := h.ctrl.RunCycle(context.Background(), ModeInteractive)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(h.query.commands) != 0 {
		t.Errorf("commands = %v, want none", h.query.commands)
	}
	if out.Toggled {
		t.Error("Toggled = true for unavailable device")
	}
	if !slices.Equal(h.notifier.events, []string{"state:Wooting 60HE+ unavailable"}) {
		t.Errorf("events = %v", h.notifier.events)
	}
	if !slices.Equal(h.notifier.labels, []string{"Unavailable"}) {
		t.Errorf("labels = %v", h.notifier.labels)
	}
}

func TestRunCycle_BackgroundNeverToggles(t *testing.T) {
	h := newHarness(device.Disconnected("kbd.1"))

	out, err := h.ctrl.RunCycle(context.Background(), ModeBackground)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(h.query.commands) != 0 {
		t.Errorf("commands = %v, want none", h.query.commands)
	}
	if !out.Changed || out.Toggled {
		t.Errorf("outcome = %+v, want changed and not toggled", out)
	}
	if h.query.lists != 1 {
		t.Errorf("ListDevices called %d times, want 1", h.query.lists)
	}
}

func TestRunCycle_BackgroundIsIdempotent(t *testing.T) {
	h := newHarness(device.Connected("kbd.1"))
	ctx := context.Background()

	if _, err := h.ctrl.RunCycle(ctx, ModeBackground); err != nil {
		t.Fatal(err)
	}
	eventsAfterFirst := len(h.notifier.events)

	out, err := h.ctrl.RunCycle(ctx, ModeBackground)
	if err != nil {
		t.Fatal(err)
	}

	if out.Changed {
		t.Error("second cycle reported a change")
	}
	if len(h.notifier.events) != eventsAfterFirst {
		t.Errorf("second cycle notified: %v", h.notifier.events[eventsAfterFirst:])
	}
	if len(h.query.commands) != 0 {
		t.Errorf("commands = %v, want none", h.query.commands)
	}
	if len(h.history.entries) != 1 {
		t.Errorf("history entries = %d, want 1", len(h.history.entries))
	}
}

func TestRunCycle_FirstObservationIsAChange(t *testing.T) {
	// An empty store counts as different even from Unavailable.
	h := newHarness(device.Unavailable())

	out, err := h.ctrl.RunCycle(context.Background(), ModeBackground)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Changed {
		t.Error("first observation not treated as a change")
	}
	if got := h.history.entries[0]; got.Previous != nil || got.Source != "background" {
		t.Errorf("history entry = %+v, want no previous and background source", got)
	}
}

func TestRunCycle_HistoryRecordsTransitions(t *testing.T) {
	h := newHarness(device.Disconnected("kbd.1"), device.Connected("kbd.1"))

	if _, err := h.ctrl.RunCycle(context.Background(), ModeInteractive); err != nil {
		t.Fatal(err)
	}

	if len(h.history.entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(h.history.entries))
	}
	first, second := h.history.entries[0], h.history.entries[1]
	if first.Source != "interactive" || first.State != device.StateDisconnected {
		t.Errorf("first entry = %+v", first)
	}
	if second.Source != "background" || second.Previous == nil || *second.Previous != device.StateDisconnected {
		t.Errorf("second entry = %+v", second)
	}
	if second.DeviceID != "kbd" || second.Address != "kbd.1" {
		t.Errorf("second entry = %+v", second)
	}
}

func TestRunCycle_PersistenceErrors(t *testing.T) {
	boom := errors.New("disk full")

	tests := []struct {
		name  string
		store device.StateStore
		hist  *fakeHistory
	}{
		{"load", failingStore{loadErr: boom}, &fakeHistory{}},
		{"save", failingStore{saveErr: boom}, &fakeHistory{}},
		{"history", device.NewMemoryStateStore(), &fakeHistory{err: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := &fakeQuery{devices: []device.Device{device.Connected("kbd.1")}}
			ctrl := New(Config{DeviceName: testName, DeviceID: "kbd"}, Deps{
				Query: query, Store: tt.store, History: tt.hist, Notifier: &recordingNotifier{},
			})

			_, err := ctrl.RunCycle(context.Background(), ModeInteractive)
			if !errors.Is(err, ErrPersistence) || !errors.Is(err, boom) {
				t.Errorf("RunCycle() error = %v, want ErrPersistence wrapping cause", err)
			}
			if len(query.commands) != 0 {
				t.Errorf("toggled despite persistence failure: %v", query.commands)
			}
		})
	}
}

func TestRunCycle_NilHistory(t *testing.T) {
	ctrl := New(Config{DeviceName: testName}, Deps{
		Query:    &fakeQuery{devices: []device.Device{device.Connected("kbd.1")}},
		Store:    device.NewMemoryStateStore(),
		Notifier: &recordingNotifier{},
	})

	if _, err := ctrl.RunCycle(context.Background(), ModeBackground); err != nil {
		t.Errorf("RunCycle() error = %v", err)
	}
}

func TestRunCycle_CancelDuringSettle(t *testing.T) {
	h := newHarness(device.Connected("kbd.1"), device.Disconnected("kbd.1"))
	h.ctrl.cfg.SettleDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := h.ctrl.RunCycle(ctx, ModeInteractive)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunCycle() error = %v, want context.Canceled", err)
	}
	if len(h.query.commands) != 1 {
		t.Errorf("commands = %v, want one", h.query.commands)
	}
}

func TestLastOutcome(t *testing.T) {
	h := newHarness(device.Connected("kbd.1"))

	if _, ok := h.ctrl.LastOutcome(); ok {
		t.Error("LastOutcome() ok before any cycle")
	}

	out, _ := h.ctrl.RunCycle(context.Background(), ModeBackground)
	last, ok := h.ctrl.LastOutcome()
	if !ok || last.CycleID != out.CycleID {
		t.Errorf("LastOutcome() = %+v, %v; want cycle %s", last, ok, out.CycleID)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"toggle", ModeInteractive, false},
		{"interactive", ModeInteractive, false},
		{" Refresh\n", ModeBackground, false},
		{"background", ModeBackground, false},
		{"explode", ModeBackground, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}

	if ModeInteractive.String() != "interactive" || ModeBackground.String() != "background" {
		t.Error("Mode.String() does not match history sources")
	}
}
