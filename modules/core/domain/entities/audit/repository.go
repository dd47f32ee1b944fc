package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, e *Event) error
	ListRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]*Event, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
