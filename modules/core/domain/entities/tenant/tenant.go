package tenant

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	id              uuid.UUID
	name            string
	subdomain       string
	contactEmail    string
	contactPhone    string
	address         string
	status          Status
	statusReason    string
	activatedAt     *time.Time
	suspendedAt     *time.Time
	config          Config
	apiKey          *string
	apiKeyRotatedAt *time.Time
	isSystem        bool
	createdBy       uuid.UUID
	updatedBy       uuid.UUID
	createdAt       time.Time
	updatedAt       time.Time
}

type Option func(*Tenant)

func WithID(id uuid.UUID) Option {
	return func(t *Tenant) {
		t.id = id
	}
}

func WithSubdomain(subdomain string) Option {
	return func(t *Tenant) {
		t.subdomain = NormalizeSubdomain(subdomain)
	}
}

func WithStatus(status Status) Option {
	return func(t *Tenant) {
		t.status = status
	}
}

func WithStatusReason(reason string) Option {
	return func(t *Tenant) {
		t.statusReason = reason
	}
}

func WithContactEmail(email string) Option {
	return func(t *Tenant) {
		t.contactEmail = email
	}
}

func WithContactPhone(phone string) Option {
	return func(t *Tenant) {
		t.contactPhone = phone
	}
}

func WithAddress(address string) Option {
	return func(t *Tenant) {
		t.address = address
	}
}

func WithConfig(config Config) Option {
	return func(t *Tenant) {
		t.config = config
	}
}

func WithAPIKey(key *string, rotatedAt *time.Time) Option {
	return func(t *Tenant) {
		t.apiKey = key
		t.apiKeyRotatedAt = rotatedAt
	}
}

func WithSystemFlag(isSystem bool) Option {
	return func(t *Tenant) {
		t.isSystem = isSystem
	}
}

func WithActivatedAt(at *time.Time) Option {
	return func(t *Tenant) {
		t.activatedAt = at
	}
}

func WithSuspendedAt(at *time.Time) Option {
	return func(t *Tenant) {
		t.suspendedAt = at
	}
}

func WithCreatedBy(id uuid.UUID) Option {
	return func(t *Tenant) {
		t.createdBy = id
	}
}

func WithUpdatedBy(id uuid.UUID) Option {
	return func(t *Tenant) {
		t.updatedBy = id
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(t *Tenant) {
		t.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(t *Tenant) {
		t.updatedAt = updatedAt
	}
}

// New creates a tenant in Provisioning with default limits. Callers are
// expected to have validated the subdomain beforehand.
func New(name, subdomain string, opts ...Option) *Tenant {
	t := &Tenant{
		id:        uuid.New(),
		name:      name,
		subdomain: NormalizeSubdomain(subdomain),
		status:    StatusProvisioning,
		config:    DefaultConfig(),
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tenant) ID() uuid.UUID {
	return t.id
}

func (t *Tenant) Name() string {
	return t.name
}

func (t *Tenant) Subdomain() string {
	return t.subdomain
}

func (t *Tenant) ContactEmail() string {
	return t.contactEmail
}

func (t *Tenant) ContactPhone() string {
	return t.contactPhone
}

func (t *Tenant) Address() string {
	return t.address
}

func (t *Tenant) Status() Status {
	return t.status
}

func (t *Tenant) StatusReason() string {
	return t.statusReason
}

func (t *Tenant) ActivatedAt() *time.Time {
	return t.activatedAt
}

func (t *Tenant) SuspendedAt() *time.Time {
	return t.suspendedAt
}

func (t *Tenant) Config() Config {
	return t.config
}

func (t *Tenant) APIKey() *string {
	return t.apiKey
}

func (t *Tenant) APIKeyRotatedAt() *time.Time {
	return t.apiKeyRotatedAt
}

func (t *Tenant) IsSystem() bool {
	return t.isSystem
}

func (t *Tenant) CreatedBy() uuid.UUID {
	return t.createdBy
}

func (t *Tenant) UpdatedBy() uuid.UUID {
	return t.updatedBy
}

func (t *Tenant) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Tenant) UpdatedAt() time.Time {
	return t.updatedAt
}

// CanAccess reports whether requests may currently be served for this tenant.
func (t *Tenant) CanAccess() bool {
	return t.status.CanAccess()
}

// TransitionTo moves the tenant through its lifecycle, recording activation
// and suspension timestamps as side effects.
func (t *Tenant) TransitionTo(target Status, reason string) error {
	if !target.IsValid() {
		return fmt.Errorf("unknown tenant status %q", target)
	}
	if !t.status.CanTransitionTo(target) {
		return fmt.Errorf("tenant %s cannot transition from %s to %s", t.id, t.status, target)
	}
	now := time.Now()
	switch target {
	case StatusActive:
		t.activatedAt = &now
		t.suspendedAt = nil
		t.statusReason = ""
	case StatusSuspended:
		t.suspendedAt = &now
		t.statusReason = reason
	default:
		t.statusReason = reason
	}
	t.status = target
	t.updatedAt = now
	return nil
}

func (t *Tenant) SetName(name string) {
	t.name = name
	t.updatedAt = time.Now()
}

func (t *Tenant) SetConfig(config Config) {
	t.config = config
	t.updatedAt = time.Now()
}

func (t *Tenant) RotateAPIKey(key string) {
	now := time.Now()
	t.apiKey = &key
	t.apiKeyRotatedAt = &now
	t.updatedAt = now
}
