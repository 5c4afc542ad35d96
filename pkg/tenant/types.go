package tenant

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantDeleted   = errors.New("tenant is deleted")
	ErrInvalidTenantID = errors.New("invalid tenant ID")
)

const (
	MinTenantIDLength = 3
	MaxTenantIDLength = 64
)

// tenantIDRegex validates tenant IDs (alphanumeric, hyphens, underscores)
var tenantIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateID checks a tenant id against length and character rules.
func ValidateID(tenantID string) error {
	if len(tenantID) < MinTenantIDLength || len(tenantID) > MaxTenantIDLength {
		return ErrInvalidTenantID
	}
	if !tenantIDRegex.MatchString(tenantID) {
		return ErrInvalidTenantID
	}
	return nil
}

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Tenant is one isolated organization map. Graph state is never shared
// across tenants, and the engine holds no tenant encryption keys.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the tenant is in active status.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
