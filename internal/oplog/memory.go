package oplog

import (
	"context"
	"sort"
	"sync"

	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/tenant"
)

// MemoryBackend is an in-process operation log.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[tenant.ID][]*core.OperationLogEntry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[tenant.ID][]*core.OperationLogEntry)}
}

func (m *MemoryBackend) AppendOperationLog(_ context.Context, tid tenant.ID, entry *core.OperationLogEntry) error {
	cp := *entry
	m.mu.Lock()
	m.entries[tid] = append(m.entries[tid], &cp)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) QueryOperationLogs(_ context.Context, tid tenant.ID, filters core.OperationLogFilters, limit, offset int) ([]*core.OperationLogEntry, error) {
	m.mu.RLock()
	all := m.entries[tid]
	matched := make([]*core.OperationLogEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if matches(all[i], filters) {
			cp := *all[i]
			matched = append(matched, &cp)
		}
	}
	m.mu.RUnlock()

	// Appends arrive in time order except for backfilled entries.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if offset >= len(matched) {
		return []*core.OperationLogEntry{}, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func matches(e *core.OperationLogEntry, f core.OperationLogFilters) bool {
	if f.VesselID != "" && (e.VesselID == nil || *e.VesselID != f.VesselID) {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !e.Timestamp.Before(*f.Until) {
		return false
	}
	return true
}

// StaticVessels is a VesselChecker over a fixed set, keyed by tenant.
type StaticVessels struct {
	mu      sync.RWMutex
	vessels map[tenant.ID]map[string]struct{}
}

func NewStaticVessels() *StaticVessels {
	return &StaticVessels{vessels: make(map[tenant.ID]map[string]struct{})}
}

func (s *StaticVessels) Add(tid tenant.ID, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.vessels[tid]
	if !ok {
		set = make(map[string]struct{})
		s.vessels[tid] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

func (s *StaticVessels) VesselExists(_ context.Context, tid tenant.ID, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vessels[tid][id]
	return ok, nil
}
