package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
)

// MemoryRepo is an in-memory documenten.Store used when no MongoDB is configured and in tests.
type MemoryRepo struct {
	mu         sync.RWMutex
	canonicals map[string]*documenten.Canonical
	versions   map[string][]*documenten.EnkelvoudigInformatieObject // by canonical id, ordered by versie
	now        func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		canonicals: map[string]*documenten.Canonical{},
		versions:   map[string][]*documenten.EnkelvoudigInformatieObject{},
		now:        time.Now,
	}
}

func (m *MemoryRepo) CreateCanonical(ctx context.Context) (*documenten.Canonical, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &documenten.Canonical{ID: uuid.NewString(), CreatedAt: m.now()}
	m.canonicals[c.ID] = c
	return c, nil
}

func (m *MemoryRepo) GetCanonical(ctx context.Context, id string) (*documenten.Canonical, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.canonicals[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("canonical %s: %w", id, documenten.ErrNotFound)
}

func (m *MemoryRepo) AddVersion(ctx context.Context, e *documenten.EnkelvoudigInformatieObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.canonicals[e.CanonicalID]; !ok {
		return fmt.Errorf("canonical %s: %w", e.CanonicalID, documenten.ErrNotFound)
	}
	for _, v := range m.versions[e.CanonicalID] {
		if v.Versie == e.Versie {
			return fmt.Errorf("version %d of %s: %w", e.Versie, e.UUID, documenten.ErrVersionConflict)
		}
	}
	e.PK = uuid.NewString()
	e.BeginRegistratie = m.now()
	stored := *e
	vs := append(m.versions[e.CanonicalID], &stored)
	sort.Slice(vs, func(i, j int) bool { return vs[i].Versie < vs[j].Versie })
	m.versions[e.CanonicalID] = vs
	return nil
}

func (m *MemoryRepo) LatestVersion(ctx context.Context, canonicalID string) (*documenten.EnkelvoudigInformatieObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vs := m.versions[canonicalID]
	if len(vs) == 0 {
		return nil, fmt.Errorf("canonical %s: %w", canonicalID, documenten.ErrNoVersions)
	}
	out := *vs[len(vs)-1]
	return &out, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string, versie int) (*documenten.EnkelvoudigInformatieObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, vs := range m.versions {
		if len(vs) == 0 || vs[0].UUID != id {
			continue
		}
		if versie == 0 {
			out := *vs[len(vs)-1]
			return &out, nil
		}
		for _, v := range vs {
			if v.Versie == versie {
				out := *v
				return &out, nil
			}
		}
	}
	return nil, fmt.Errorf("%s versie %d: %w", id, versie, documenten.ErrNotFound)
}

func (m *MemoryRepo) List(ctx context.Context, f documenten.ListFilter) ([]*documenten.EnkelvoudigInformatieObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*documenten.EnkelvoudigInformatieObject, 0, len(m.versions))
	for _, vs := range m.versions {
		if len(vs) == 0 {
			continue
		}
		latest := *vs[len(vs)-1]
		if f.Matches(&latest) {
			out = append(out, &latest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (m *MemoryRepo) DeleteCanonical(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.canonicals[id]; !ok {
		return fmt.Errorf("canonical %s: %w", id, documenten.ErrNotFound)
	}
	delete(m.canonicals, id)
	delete(m.versions, id)
	return nil
}
