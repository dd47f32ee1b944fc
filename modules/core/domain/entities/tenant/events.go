package tenant

import (
	"context"

	"github.com/google/uuid"
)

type CreatedEvent struct {
	Tenant *Tenant
	Result *Tenant
}

func NewCreatedEvent(_ context.Context, t *Tenant) *CreatedEvent {
	return &CreatedEvent{Tenant: t}
}

type UpdatedEvent struct {
	Tenant *Tenant
	Result *Tenant
}

func NewUpdatedEvent(_ context.Context, t *Tenant) *UpdatedEvent {
	return &UpdatedEvent{Tenant: t}
}

type StatusChangedEvent struct {
	TenantID uuid.UUID
	From     Status
	To       Status
	Reason   string
}

func NewStatusChangedEvent(_ context.Context, id uuid.UUID, from, to Status, reason string) *StatusChangedEvent {
	return &StatusChangedEvent{TenantID: id, From: from, To: to, Reason: reason}
}
