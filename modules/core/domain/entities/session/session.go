package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is an opaque credential scoped to exactly one tenant. Switching
// tenants issues a new session rather than mutating an existing one.
type Session struct {
	Token     string
	UserID    uuid.UUID
	TenantID  uuid.UUID
	IP        string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
