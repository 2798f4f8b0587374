package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultStateSlot is the single slot the last observed state is kept under.
const DefaultStateSlot = "state"

// StateStore persists the last observed state across invocations.
//
// The slot is either absent (never written) or holds exactly one State.
type StateStore interface {
	// Load returns the stored state.
	//
	// Returns:
	//   - State: The stored value (StateUnavailable when absent)
	//   - bool: false if nothing has been stored yet
	//   - error: Underlying storage error, or ErrInvalidState for an unknown token
	Load(ctx context.Context) (State, bool, error)

	// Save overwrites the stored state.
	Save(ctx context.Context, state State) error
}

// SQLiteStateStore implements StateStore on the device_state table.
type SQLiteStateStore struct {
	db   *sql.DB
	slot string
}

// NewSQLiteStateStore creates a state store for the given slot.
// An empty slot uses DefaultStateSlot.
func NewSQLiteStateStore(db *sql.DB, slot string) *SQLiteStateStore {
	if slot == "" {
		slot = DefaultStateSlot
	}
	return &SQLiteStateStore{db: db, slot: slot}
}

// Load reads the slot.
func (s *SQLiteStateStore) Load(ctx context.Context) (State, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM device_state WHERE slot = ?",
		s.slot,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return StateUnavailable, false, nil
	}
	if err != nil {
		return StateUnavailable, false, fmt.Errorf("querying device state: %w", err)
	}

	state, err := ParseState(token)
	if err != nil {
		return StateUnavailable, false, err
	}
	return state, true, nil
}

// Save upserts the slot.
func (s *SQLiteStateStore) Save(ctx context.Context, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, uint8(state))
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_state (slot, state, updated_at)
		 VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		 ON CONFLICT(slot) DO UPDATE SET
		   state = excluded.state,
		   updated_at = excluded.updated_at`,
		s.slot,
		state.String(),
	)
	if err != nil {
		return fmt.Errorf("saving device state: %w", err)
	}
	return nil
}

// MemoryStateStore is an in-process StateStore, used when no database is
// configured and in tests.
type MemoryStateStore struct {
	state State
	set   bool
}

// NewMemoryStateStore returns an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

// Load implements StateStore.
func (m *MemoryStateStore) Load(_ context.Context) (State, bool, error) {
	return m.state, m.set, nil
}

// Save implements StateStore.
func (m *MemoryStateStore) Save(_ context.Context, state State) error {
	m.state = state
	m.set = true
	return nil
}
