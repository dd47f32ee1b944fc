package models

import (
	"database/sql"
	"time"
)

type Tenant struct {
	ID              string
	Name            string
	Subdomain       string
	ContactEmail    sql.NullString
	ContactPhone    sql.NullString
	Address         sql.NullString
	Status          string
	StatusReason    sql.NullString
	ActivatedAt     sql.NullTime
	SuspendedAt     sql.NullTime
	Config          []byte
	APIKey          sql.NullString
	APIKeyRotatedAt sql.NullTime
	IsSystem        bool
	CreatedBy       sql.NullString
	UpdatedBy       sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type User struct {
	ID            string
	TenantID      string
	Email         string
	FirstName     string
	LastName      string
	Role          string
	IsSystemAdmin bool
	PasswordHash  sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Session struct {
	Token     string
	UserID    string
	TenantID  string
	IP        sql.NullString
	UserAgent sql.NullString
	ExpiresAt time.Time
	CreatedAt time.Time
}

type AuditEvent struct {
	ID         string
	Type       string
	TenantID   sql.NullString
	UserID     sql.NullString
	UserEmail  string
	Endpoint   sql.NullString
	Method     sql.NullString
	Status     sql.NullInt32
	DurationMS int64
	Blocked    bool
	Succeeded  bool
	Metadata   []byte
	CreatedAt  time.Time
}
