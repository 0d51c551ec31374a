package resource

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Entry records one tracked resource.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Track registers a resource of the given type and returns its identity.
// Past MaxTracked entries the oldest is forgotten.
func (m *Manager) Track(resourceType string, metadata map[string]any) uuid.UUID {
	id := uuid.New()
	m.tracked.Add(id, Entry{
		ID:        id,
		Type:      resourceType,
		CreatedAt: m.clock.Now(),
		Metadata:  maps.Clone(metadata),
	})
	return id
}

// Untrack forgets id. It reports whether the entry was still tracked.
func (m *Manager) Untrack(id uuid.UUID) bool { return m.tracked.Remove(id) }

// Tracked returns the entry for id.
func (m *Manager) Tracked(id uuid.UUID) (Entry, bool) { return m.tracked.Peek(id) }

// TrackedCount returns the number of tracked entries per type.
func (m *Manager) TrackedCount() map[string]int {
	out := make(map[string]int)
	for _, id := range m.tracked.Keys() {
		if e, ok := m.tracked.Peek(id); ok {
			out[e.Type]++
		}
	}
	return out
}

// purgeExpired removes entries older than their type's TTL.
func (m *Manager) purgeExpired(now time.Time) int {
	n := 0
	for _, id := range m.tracked.Keys() {
		e, ok := m.tracked.Peek(id)
		if !ok {
			continue
		}
		ttl, ok := m.cfg.TTLs[e.Type]
		if ok && ttl > 0 && now.Sub(e.CreatedAt) >= ttl {
			m.tracked.Remove(id)
			n++
		}
	}
	return n
}
