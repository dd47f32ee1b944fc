package horse

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a horse through the rescue pipeline.
type Status string

const (
	StatusIntake      Status = "intake"
	StatusRehab       Status = "rehab"
	StatusAdoptable   Status = "adoptable"
	StatusAdopted     Status = "adopted"
	StatusSanctuary   Status = "sanctuary"
	StatusTransferred Status = "transferred"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusIntake, StatusRehab, StatusAdoptable, StatusAdopted, StatusSanctuary, StatusTransferred:
		return true
	}
	return false
}

type Horse struct {
	id         uuid.UUID
	tenantID   uuid.UUID
	name       string
	breed      string
	microchip  string
	status     Status
	intakeDate time.Time
	notes      string
	createdAt  time.Time
	updatedAt  time.Time
}

type Option func(*Horse)

func WithID(id uuid.UUID) Option {
	return func(h *Horse) {
		h.id = id
	}
}

func WithTenantID(tenantID uuid.UUID) Option {
	return func(h *Horse) {
		h.tenantID = tenantID
	}
}

func WithBreed(breed string) Option {
	return func(h *Horse) {
		h.breed = breed
	}
}

func WithMicrochip(microchip string) Option {
	return func(h *Horse) {
		h.microchip = microchip
	}
}

func WithStatus(status Status) Option {
	return func(h *Horse) {
		h.status = status
	}
}

func WithIntakeDate(intakeDate time.Time) Option {
	return func(h *Horse) {
		h.intakeDate = intakeDate
	}
}

func WithNotes(notes string) Option {
	return func(h *Horse) {
		h.notes = notes
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(h *Horse) {
		h.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(h *Horse) {
		h.updatedAt = updatedAt
	}
}

func New(name string, opts ...Option) *Horse {
	h := &Horse{
		id:         uuid.New(),
		name:       name,
		status:     StatusIntake,
		intakeDate: time.Now(),
		createdAt:  time.Now(),
		updatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Horse) ID() uuid.UUID {
	return h.id
}

// TenantID implements the tenant-owned entity capability.
func (h *Horse) TenantID() uuid.UUID {
	return h.tenantID
}

func (h *Horse) SetTenantID(id uuid.UUID) {
	h.tenantID = id
}

func (h *Horse) Name() string {
	return h.name
}

func (h *Horse) Breed() string {
	return h.breed
}

func (h *Horse) Microchip() string {
	return h.microchip
}

func (h *Horse) Status() Status {
	return h.status
}

func (h *Horse) IntakeDate() time.Time {
	return h.intakeDate
}

func (h *Horse) Notes() string {
	return h.notes
}

func (h *Horse) CreatedAt() time.Time {
	return h.createdAt
}

func (h *Horse) UpdatedAt() time.Time {
	return h.updatedAt
}

func (h *Horse) SetName(name string) {
	h.name = name
	h.updatedAt = time.Now()
}

func (h *Horse) SetStatus(status Status) {
	h.status = status
	h.updatedAt = time.Now()
}

func (h *Horse) SetNotes(notes string) {
	h.notes = notes
	h.updatedAt = time.Now()
}
