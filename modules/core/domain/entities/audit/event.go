package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies audit events for security review.
type EventType string

const (
	EventResolution      EventType = "tenant_resolution"
	EventAccess          EventType = "tenant_access"
	EventCrossTenant     EventType = "cross_tenant_attempt"
	EventTenantSwitch    EventType = "tenant_switch"
	EventAllTenantsQuery EventType = "all_tenants_query"
	EventPolicyDenied    EventType = "policy_denied"
	EventPolicyBypass    EventType = "policy_admin_bypass"
)

const AnonymousPrincipal = "anonymous"

// Event is an immutable record of a resolution attempt or a tenant-scoped
// access. Events are never mutated after creation.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	TenantID  uuid.UUID
	UserID    *uuid.UUID
	UserEmail string
	Endpoint  string
	Method    string
	Status    int
	Duration  time.Duration
	// Blocked marks cross-tenant attempts that were rejected.
	Blocked   bool
	Succeeded bool
	Metadata  map[string]string
	CreatedAt time.Time
}

func New(eventType EventType) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		UserEmail: AnonymousPrincipal,
		CreatedAt: time.Now(),
	}
}
