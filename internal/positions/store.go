package positions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/tenant"
)

const (
	// RetentionCap is the maximum number of positions kept per vessel.
	RetentionCap = 1000

	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// Backend persists position records. Every method filters by tenant.
type Backend interface {
	// InsertAndTrim stores rec and removes the vessel's records beyond the keep most
	// recent by timestamp.
	InsertAndTrim(ctx context.Context, tid tenant.ID, rec *core.PositionRecord, keep int) error
	// Latest returns nil, nil when the vessel has no positions for the tenant.
	Latest(ctx context.Context, tid tenant.ID, vesselID string) (*core.PositionRecord, error)
	History(ctx context.Context, tid tenant.ID, vesselID string, limit int) ([]*core.PositionRecord, error)
}

// Store is the tenant-scoped position history of every vessel.
type Store struct {
	backend Backend
	locks   *keyedMutex
	keep    int
}

func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		locks:   newKeyedMutex(),
		keep:    RetentionCap,
	}
}

// Append stores rec for vesselID and trims the vessel's history to RetentionCap.
// Appends for the same vessel are serialized; other vessels proceed in parallel.
func (s *Store) Append(ctx context.Context, tid tenant.ID, vesselID string, rec *core.PositionRecord) (string, error) {
	if _, err := tenant.Require(tid); err != nil {
		return "", err
	}
	if vesselID == "" {
		return "", fmt.Errorf("%w: missing vessel id", core.ErrInvalidPosition)
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}

	stored := *rec
	stored.ID = uuid.New().String()
	stored.TenantID = string(tid)
	stored.VesselID = vesselID
	stored.TimestampUTC = rec.TimestampUTC.UTC()
	if stored.Source == "" {
		stored.Source = core.SourceManual
	}

	unlock := s.locks.Lock(string(tid) + "/" + vesselID)
	defer unlock()

	if err := s.backend.InsertAndTrim(ctx, tid, &stored, s.keep); err != nil {
		return "", storageError("append position", err)
	}
	rec.ID = stored.ID
	return stored.ID, nil
}

// Latest returns the most recent position, or nil when the tenant has none for the vessel.
func (s *Store) Latest(ctx context.Context, tid tenant.ID, vesselID string) (*core.PositionRecord, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	rec, err := s.backend.Latest(ctx, tid, vesselID)
	if err != nil {
		return nil, storageError("latest position", err)
	}
	return rec, nil
}

// History returns up to limit positions, newest first.
func (s *Store) History(ctx context.Context, tid tenant.ID, vesselID string, limit int) ([]*core.PositionRecord, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	records, err := s.backend.History(ctx, tid, vesselID, ClampLimit(limit))
	if err != nil {
		return nil, storageError("position history", err)
	}
	return records, nil
}

// ClampLimit applies the history default and ceiling.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// Fresh reports whether rec is recent enough to skip a provider call.
func Fresh(rec *core.PositionRecord, now time.Time, maxAge time.Duration) bool {
	return rec != nil && now.Sub(rec.TimestampUTC) <= maxAge
}

func storageError(op string, err error) error {
	if errors.Is(err, core.ErrStorageUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, core.ErrStorageUnavailable, err)
}
