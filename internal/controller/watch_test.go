package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/vhtoggle/internal/device"
)

func TestWatch_RunsInitialAndTriggeredCycles(t *testing.T) {
	h := newHarness(device.Disconnected("kbd.1"), device.Disconnected("kbd.1"), device.Connected("kbd.1"))
	triggers := make(chan Mode, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Watch(ctx, 0, triggers) }()

	triggers <- ModeInteractive

	deadline := time.Now().Add(5 * time.Second)
	for {
		h.query.mu.Lock()
		commands := len(h.query.commands)
		lists := h.query.lists
		h.query.mu.Unlock()
		if commands == 1 && lists >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("triggered cycle did not run: commands=%d lists=%d", commands, lists)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestWatch_TickerRefreshes(t *testing.T) {
	h := newHarness(device.Connected("kbd.1"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := h.ctrl.Watch(ctx, 10*time.Millisecond, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Watch() error = %v", err)
	}

	if h.query.lists < 2 {
		t.Errorf("ListDevices called %d times, want periodic refreshes", h.query.lists)
	}
	if len(h.query.commands) != 0 {
		t.Errorf("background refresh toggled: %v", h.query.commands)
	}
}

func TestTrigger(t *testing.T) {
	ch := make(chan Mode, 1)

	if !Trigger(ch, ModeInteractive) {
		t.Error("Trigger() = false on empty channel")
	}
	if Trigger(ch, ModeBackground) {
		t.Error("Trigger() = true on full channel")
	}
	if got := <-ch; got != ModeInteractive {
		t.Errorf("queued mode = %v, want interactive", got)
	}
}
