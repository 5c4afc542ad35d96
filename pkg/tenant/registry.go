package tenant

import (
	"fmt"
	"sync"
	"time"

	"github.com/subtexthq/powermap/pkg/graph"
	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/metrics"
)

// Registry owns the runtimes for all tenants. A runtime comes into existence
// on first use (first player created for the tenant) and is dropped with the
// tenant.
type Registry struct {
	builderCfg graph.BuilderConfig
	logger     logging.Logger
	metrics    *metrics.Registry

	mu       sync.RWMutex
	tenants  map[string]*Tenant
	runtimes map[string]*Runtime
}

// NewRegistry creates an empty tenant registry.
func NewRegistry(builderCfg graph.BuilderConfig, logger logging.Logger, reg *metrics.Registry) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	return &Registry{
		builderCfg: builderCfg,
		logger:     logger,
		metrics:    reg,
		tenants:    make(map[string]*Tenant),
		runtimes:   make(map[string]*Runtime),
	}
}

// GetOrCreate returns the runtime for a tenant, creating the tenant record
// and runtime on first use.
func (r *Registry) GetOrCreate(tenantID string) (*Runtime, error) {
	if err := ValidateID(tenantID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	if rt, ok := r.runtimes[tenantID]; ok {
		t := r.tenants[tenantID]
		r.mu.RUnlock()
		if t != nil && !t.IsActive() {
			return nil, fmt.Errorf("%w: %s", ErrTenantDeleted, tenantID)
		}
		return rt, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.runtimes[tenantID]; ok {
		if t := r.tenants[tenantID]; t != nil && !t.IsActive() {
			return nil, fmt.Errorf("%w: %s", ErrTenantDeleted, tenantID)
		}
		return rt, nil
	}

	now := time.Now().UTC()
	r.tenants[tenantID] = &Tenant{
		ID:        tenantID,
		Name:      tenantID,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rt := NewRuntime(tenantID, graph.NewBuilder(r.builderCfg, r.logger), r.logger, r.metrics)
	r.runtimes[tenantID] = rt

	r.logger.Info("tenant runtime created", logging.TenantID(tenantID))
	return rt, nil
}

// Get returns the runtime for an existing tenant.
func (r *Registry) Get(tenantID string) (*Runtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.runtimes[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	if t := r.tenants[tenantID]; t != nil && !t.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrTenantDeleted, tenantID)
	}
	return rt, nil
}

// Tenants lists all non-deleted tenants.
func (r *Registry) Tenants() []*Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out
}

// Delete marks a tenant deleted and drops its runtime, ending the lifecycle
// of its graph state.
func (r *Registry) Delete(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[tenantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	t.Status = StatusDeleted
	t.UpdatedAt = time.Now().UTC()
	delete(r.runtimes, tenantID)

	r.logger.Info("tenant runtime dropped", logging.TenantID(tenantID))
	return nil
}
