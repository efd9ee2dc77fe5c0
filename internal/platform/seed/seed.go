package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Seed is a versioned, idempotent mutation that runs once per environment.
type Seed struct {
	ID          string
	Description string
	Run         func(ctx context.Context) error
}

// Record is what a tracker stores for an applied seed.
type Record struct {
	ID          string    `bson:"_id" db:"id"`
	Application string    `bson:"application" db:"application"`
	Description string    `bson:"description" db:"description"`
	AppliedAt   time.Time `bson:"applied_at" db:"applied_at"`
}

// Tracker persists which seeds have executed.
type Tracker interface {
	HasRun(ctx context.Context, id string) (bool, error)
	MarkRun(ctx context.Context, record Record) error
}

// Apply runs every seed the tracker has not seen, in order, and stops at
// the first failure. A failed seed is not marked.
func Apply(ctx context.Context, tracker Tracker, seeds []Seed, application string) error {
	if tracker == nil {
		return errors.New("seed tracker is required")
	}

	for i, s := range seeds {
		if s.ID == "" {
			return fmt.Errorf("seed at index %d missing ID", i)
		}
		if s.Run == nil {
			return fmt.Errorf("seed %s missing Run function", s.ID)
		}

		ran, err := tracker.HasRun(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("check seed %s status: %w", s.ID, err)
		}
		if ran {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Run(ctx); err != nil {
			return fmt.Errorf("seed %s failed: %w", s.ID, err)
		}

		record := Record{
			ID:          s.ID,
			Application: application,
			Description: s.Description,
			AppliedAt:   time.Now().UTC(),
		}
		if err := tracker.MarkRun(ctx, record); err != nil {
			return fmt.Errorf("mark seed %s as complete: %w", s.ID, err)
		}
	}
	return nil
}

const defaultTableName = "_seeds"

// MemoryTracker remembers applied seeds for the life of the process.
type MemoryTracker struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]Record)}
}

func (t *MemoryTracker) HasRun(_ context.Context, id string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.records[id]
	return ok, nil
}

func (t *MemoryTracker) MarkRun(_ context.Context, record Record) error {
	if record.ID == "" {
		return errors.New("seed record ID is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[record.ID] = record
	return nil
}

// Records returns what has been applied so far.
func (t *MemoryTracker) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	return out
}
