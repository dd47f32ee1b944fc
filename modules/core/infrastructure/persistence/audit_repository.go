package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/audit"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence/models"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/mapping"
)

type AuditRepository struct{}

func NewAuditRepository() audit.Repository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(ctx context.Context, e *audit.Event) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit metadata")
	}

	query := `
		INSERT INTO audit_events (
			id, type, tenant_id, user_id, user_email, endpoint, method,
			status, duration_ms, blocked, succeeded, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	var tenantID interface{}
	if e.TenantID != uuid.Nil {
		tenantID = e.TenantID.String()
	}
	var userID interface{}
	if e.UserID != nil {
		userID = e.UserID.String()
	}

	if _, err := tx.Exec(
		ctx,
		query,
		e.ID.String(),
		string(e.Type),
		tenantID,
		userID,
		e.UserEmail,
		mapping.ValueToSQLNullString(e.Endpoint),
		mapping.ValueToSQLNullString(e.Method),
		e.Status,
		e.Duration.Milliseconds(),
		e.Blocked,
		e.Succeeded,
		metadata,
		e.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to insert audit event")
	}
	return nil
}

func (r *AuditRepository) ListRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]*audit.Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	query := `
		SELECT id, type, tenant_id, user_id, user_email, endpoint, method,
		       status, duration_ms, blocked, succeeded, metadata, created_at
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := tx.Query(ctx, query, tenantID.String(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit events")
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var m models.AuditEvent
		var status int
		if err := rows.Scan(
			&m.ID,
			&m.Type,
			&m.TenantID,
			&m.UserID,
			&m.UserEmail,
			&m.Endpoint,
			&m.Method,
			&status,
			&m.DurationMS,
			&m.Blocked,
			&m.Succeeded,
			&m.Metadata,
			&m.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit row")
		}
		e, err := toDomainAuditEvent(&m, status)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return events, nil
}

func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune audit events")
	}
	return tag.RowsAffected(), nil
}

func toDomainAuditEvent(m *models.AuditEvent, status int) (*audit.Event, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid audit event id")
	}

	e := &audit.Event{
		ID:        id,
		Type:      audit.EventType(m.Type),
		UserEmail: m.UserEmail,
		Endpoint:  mapping.SQLNullStringToValue(m.Endpoint),
		Method:    mapping.SQLNullStringToValue(m.Method),
		Status:    status,
		Duration:  time.Duration(m.DurationMS) * time.Millisecond,
		Blocked:   m.Blocked,
		Succeeded: m.Succeeded,
		CreatedAt: m.CreatedAt,
	}

	if m.TenantID.Valid {
		if tenantID, err := uuid.Parse(m.TenantID.String); err == nil {
			e.TenantID = tenantID
		}
	}
	if m.UserID.Valid {
		if userID, err := uuid.Parse(m.UserID.String); err == nil {
			e.UserID = &userID
		}
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &e.Metadata); err != nil {
			return nil, errors.Wrap(err, "invalid audit metadata")
		}
	}

	return e, nil
}
