package oplog

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
	DefaultQueryLimit = 50
	MaxQueryLimit     = 200
)

// Backend persists operation log entries. Every method filters by tenant.
type Backend interface {
	AppendOperationLog(ctx context.Context, tid tenant.ID, entry *core.OperationLogEntry) error
	QueryOperationLogs(ctx context.Context, tid tenant.ID, filters core.OperationLogFilters, limit, offset int) ([]*core.OperationLogEntry, error)
}

// VesselChecker answers whether a vessel belongs to a tenant.
type VesselChecker interface {
	VesselExists(ctx context.Context, tid tenant.ID, id string) (bool, error)
}

// Log is the append-only, tenant-scoped operation log.
type Log struct {
	backend Backend
	vessels VesselChecker
	now     func() time.Time
}

func New(backend Backend, vessels VesselChecker) *Log {
	return &Log{backend: backend, vessels: vessels, now: time.Now}
}

// Append writes entry for tid and returns its ID. Entries naming a vessel the tenant
// does not own are dropped without error and return an empty ID.
func (l *Log) Append(ctx context.Context, tid tenant.ID, entry core.OperationLogEntry) (string, error) {
	if _, err := tenant.Require(tid); err != nil {
		return "", err
	}
	if !entry.EventType.Valid() {
		return "", fmt.Errorf("%w: unknown event type %q", core.ErrEventLogWrite, entry.EventType)
	}

	if entry.VesselID != nil {
		exists, err := l.vessels.VesselExists(ctx, tid, *entry.VesselID)
		if err != nil {
			return "", writeError(err)
		}
		if !exists {
			return "", nil
		}
	}

	entry.ID = uuid.New().String()
	entry.TenantID = string(tid)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}

	if err := l.backend.AppendOperationLog(ctx, tid, &entry); err != nil {
		return "", writeError(err)
	}
	return entry.ID, nil
}

// Query returns entries newest first.
func (l *Log) Query(ctx context.Context, tid tenant.ID, filters core.OperationLogFilters, limit, offset int) ([]*core.OperationLogEntry, error) {
	if _, err := tenant.Require(tid); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := l.backend.QueryOperationLogs(ctx, tid, filters, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query operation log: %w", err)
	}
	return entries, nil
}

func writeError(err error) error {
	if errors.Is(err, core.ErrEventLogWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrEventLogWrite, err)
}
