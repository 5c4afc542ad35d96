package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/subtexthq/powermap/pkg/model"
)

// Memory is the in-process Store used by tests and the demo CLI.
type Memory struct {
	mu            sync.RWMutex
	players       map[string]map[string]model.Player       // tenant -> player id -> player
	relationships map[string]map[string]model.Relationship // tenant -> relationship id -> relationship
	events        map[string]map[string]model.CommunicationEvent // tenant -> dedup key -> event
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		players:       make(map[string]map[string]model.Player),
		relationships: make(map[string]map[string]model.Relationship),
		events:        make(map[string]map[string]model.CommunicationEvent),
	}
}

func (m *Memory) CreatePlayer(_ context.Context, p *model.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.players[p.TenantID]
	if tenant == nil {
		tenant = make(map[string]model.Player)
		m.players[p.TenantID] = tenant
	}
	if _, exists := tenant[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPlayerExists, p.ID)
	}
	tenant[p.ID] = *p
	return nil
}

func (m *Memory) GetPlayer(_ context.Context, tenantID, playerID string) (*model.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[tenantID][playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	return &p, nil
}

func (m *Memory) ListPlayers(_ context.Context, tenantID string) ([]model.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Player, 0, len(m.players[tenantID]))
	for _, p := range m.players[tenantID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdatePlayer(_ context.Context, p *model.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.players[p.TenantID]
	if _, ok := tenant[p.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, p.ID)
	}
	tenant[p.ID] = *p
	return nil
}

func (m *Memory) DeletePlayer(_ context.Context, tenantID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.players[tenantID]
	if _, ok := tenant[playerID]; !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	delete(tenant, playerID)

	// Cascade: relationships touching the player go with them.
	for id, r := range m.relationships[tenantID] {
		if r.FromPlayerID == playerID || r.ToPlayerID == playerID {
			delete(m.relationships[tenantID], id)
		}
	}
	return nil
}

func (m *Memory) UpsertRelationship(_ context.Context, r *model.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.relationships[r.TenantID]
	if tenant == nil {
		tenant = make(map[string]model.Relationship)
		m.relationships[r.TenantID] = tenant
	}

	// One row per (from, to, kind): upserting an existing pair edits it in
	// place, keeping the original identity so edges never accumulate.
	for id, existing := range tenant {
		if existing.FromPlayerID == r.FromPlayerID &&
			existing.ToPlayerID == r.ToPlayerID &&
			existing.Kind == r.Kind {
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
			tenant[id] = *r
			return nil
		}
	}
	tenant[r.ID] = *r
	return nil
}

func (m *Memory) ListRelationships(_ context.Context, tenantID string) ([]model.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Relationship, 0, len(m.relationships[tenantID]))
	for _, r := range m.relationships[tenantID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteRelationship(_ context.Context, tenantID, relationshipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.relationships[tenantID]
	if _, ok := tenant[relationshipID]; !ok {
		return fmt.Errorf("%w: %s", ErrRelationshipNotFound, relationshipID)
	}
	delete(tenant, relationshipID)
	return nil
}

func (m *Memory) AppendEvents(_ context.Context, tenantID string, events []model.CommunicationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.events[tenantID]
	if tenant == nil {
		tenant = make(map[string]model.CommunicationEvent)
		m.events[tenantID] = tenant
	}
	for _, e := range events {
		key := e.DedupKey()
		if _, exists := tenant[key]; exists {
			continue
		}
		tenant[key] = e
	}
	return nil
}

func (m *Memory) ListEvents(_ context.Context, tenantID string, since time.Time) ([]model.CommunicationEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.CommunicationEvent, 0, len(m.events[tenantID]))
	for _, e := range m.events[tenantID] {
		if e.Timestamp.Before(since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].DedupKey() < out[j].DedupKey()
	})
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
