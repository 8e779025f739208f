package positions

import (
	"context"
	"sort"
	"sync"

	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/tenant"
)

// MemoryBackend keeps histories in process, newest first. It backs tests and the
// degraded mode used when the database is unavailable.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[tenant.ID]map[string][]*core.PositionRecord
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[tenant.ID]map[string][]*core.PositionRecord)}
}

func (m *MemoryBackend) InsertAndTrim(_ context.Context, tid tenant.ID, rec *core.PositionRecord, keep int) error {
	cp := *rec

	m.mu.Lock()
	defer m.mu.Unlock()

	vessels, ok := m.data[tid]
	if !ok {
		vessels = make(map[string][]*core.PositionRecord)
		m.data[tid] = vessels
	}
	history := vessels[rec.VesselID]

	// New records go ahead of older or equal timestamps so the latest write wins ties.
	i := sort.Search(len(history), func(i int) bool {
		return !history[i].TimestampUTC.After(cp.TimestampUTC)
	})
	history = append(history, nil)
	copy(history[i+1:], history[i:])
	history[i] = &cp

	if keep > 0 && len(history) > keep {
		for j := keep; j < len(history); j++ {
			history[j] = nil
		}
		history = history[:keep]
	}
	vessels[rec.VesselID] = history
	return nil
}

func (m *MemoryBackend) Latest(_ context.Context, tid tenant.ID, vesselID string) (*core.PositionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.data[tid][vesselID]
	if len(history) == 0 {
		return nil, nil
	}
	cp := *history[0]
	return &cp, nil
}

func (m *MemoryBackend) History(_ context.Context, tid tenant.ID, vesselID string, limit int) ([]*core.PositionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.data[tid][vesselID]
	if limit < 0 {
		limit = 0
	}
	if limit > len(history) {
		limit = len(history)
	}
	out := make([]*core.PositionRecord, 0, limit)
	for _, rec := range history[:limit] {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// Count returns the number of stored records for a vessel.
func (m *MemoryBackend) Count(tid tenant.ID, vesselID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[tid][vesselID])
}
