package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the membership role label inside a tenant. Roles are ordered:
// Member < Manager < Admin.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// AtLeast reports whether this role satisfies the given minimum.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level()
}

func (r Role) IsValid() bool {
	return r.Level() > 0
}

type User struct {
	id            uuid.UUID
	tenantID      uuid.UUID
	email         string
	firstName     string
	lastName      string
	role          Role
	isSystemAdmin bool
	passwordHash  string
	createdAt     time.Time
	updatedAt     time.Time
}

type Option func(*User)

func WithID(id uuid.UUID) Option {
	return func(u *User) {
		u.id = id
	}
}

func WithTenantID(tenantID uuid.UUID) Option {
	return func(u *User) {
		u.tenantID = tenantID
	}
}

func WithRole(role Role) Option {
	return func(u *User) {
		u.role = role
	}
}

func WithSystemAdmin(isSystemAdmin bool) Option {
	return func(u *User) {
		u.isSystemAdmin = isSystemAdmin
	}
}

func WithPasswordHash(hash string) Option {
	return func(u *User) {
		u.passwordHash = hash
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(u *User) {
		u.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(u *User) {
		u.updatedAt = updatedAt
	}
}

func New(firstName, lastName, email string, opts ...Option) *User {
	u := &User{
		id:        uuid.New(),
		firstName: firstName,
		lastName:  lastName,
		email:     email,
		role:      RoleMember,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *User) ID() uuid.UUID {
	return u.id
}

// TenantID is the user's home tenant.
func (u *User) TenantID() uuid.UUID {
	return u.tenantID
}

func (u *User) Email() string {
	return u.email
}

func (u *User) FirstName() string {
	return u.firstName
}

func (u *User) LastName() string {
	return u.lastName
}

func (u *User) Role() Role {
	return u.role
}

func (u *User) IsSystemAdmin() bool {
	return u.isSystemAdmin
}

// PasswordHash is opaque to this subsystem; hashing and verification belong
// to the external authentication provider.
func (u *User) PasswordHash() string {
	return u.passwordHash
}

func (u *User) CreatedAt() time.Time {
	return u.createdAt
}

func (u *User) UpdatedAt() time.Time {
	return u.updatedAt
}

// BelongsTo reports membership in the given tenant.
func (u *User) BelongsTo(tenantID uuid.UUID) bool {
	return u.tenantID != uuid.Nil && u.tenantID == tenantID
}

func (u *User) SetRole(role Role) {
	u.role = role
	u.updatedAt = time.Now()
}

func (u *User) SetName(firstName, lastName string) {
	u.firstName = firstName
	u.lastName = lastName
	u.updatedAt = time.Now()
}
