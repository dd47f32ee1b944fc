package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/session"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence/models"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/mapping"
)

var (
	ErrSessionNotFound = fmt.Errorf("session not found")
)

type SessionRepository struct{}

func NewSessionRepository() session.Repository {
	return &SessionRepository{}
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*session.Session, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	query := `
		SELECT token, user_id, tenant_id, ip, user_agent, expires_at, created_at
		FROM sessions
		WHERE token = $1
	`
	var s models.Session
	if err := tx.QueryRow(ctx, query, token).Scan(
		&s.Token,
		&s.UserID,
		&s.TenantID,
		&s.IP,
		&s.UserAgent,
		&s.ExpiresAt,
		&s.CreatedAt,
	); err != nil {
		return nil, ErrSessionNotFound
	}

	return toDomainSession(&s)
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (token, user_id, tenant_id, ip, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(
		ctx,
		query,
		s.Token,
		s.UserID.String(),
		s.TenantID.String(),
		mapping.ValueToSQLNullString(s.IP),
		mapping.ValueToSQLNullString(s.UserAgent),
		s.ExpiresAt,
		s.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to insert session")
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "failed to delete user sessions")
	}
	return nil
}

func toDomainSession(s *models.Session) (*session.Session, error) {
	userID, err := uuid.Parse(s.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid session user id")
	}
	tenantID, err := uuid.Parse(s.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid session tenant id")
	}

	return &session.Session{
		Token:     s.Token,
		UserID:    userID,
		TenantID:  tenantID,
		IP:        mapping.SQLNullStringToValue(s.IP),
		UserAgent: mapping.SQLNullStringToValue(s.UserAgent),
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}, nil
}
