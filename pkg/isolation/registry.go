package isolation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TenantEntity is the capability carried by every tenant-owned record. The
// enforcer introspects it generically instead of per-type filters.
type TenantEntity interface {
	TenantID() uuid.UUID
	SetTenantID(id uuid.UUID)
}

// Kind describes one registered tenant-owned entity type and where its
// ownership column lives.
type Kind struct {
	Name         string
	Table        string
	TenantColumn string
}

// Registry is the explicit declaration point for tenant-owned entity kinds.
// Repositories register their kind at construction; scoping a kind that was
// never registered is a programming error surfaced at query time.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

func NewRegistry() *Registry {
	return &Registry{kinds: map[string]Kind{}}
}

func (r *Registry) Register(kind Kind) error {
	if kind.Name == "" || kind.Table == "" {
		return fmt.Errorf("isolation: kind needs a name and table, got %+v", kind)
	}
	if kind.TenantColumn == "" {
		kind.TenantColumn = "tenant_id"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.kinds[kind.Name]; ok && existing != kind {
		return fmt.Errorf("isolation: kind %q already registered with different metadata", kind.Name)
	}
	r.kinds[kind.Name] = kind
	return nil
}

func (r *Registry) Kind(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.kinds[name]
	return kind, ok
}

func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.kinds))
	for _, kind := range r.kinds {
		out = append(out, kind)
	}
	return out
}
