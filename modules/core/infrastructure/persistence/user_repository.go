package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence/models"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/mapping"
)

var (
	ErrUserNotFound = fmt.Errorf("user not found")
)

const (
	userFindQuery = `
		SELECT id, tenant_id, email, first_name, last_name, role,
		       is_system_admin, password_hash, created_at, updated_at
		FROM users`
)

type UserRepository struct{}

func NewUserRepository() user.Repository {
	return &UserRepository{}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	users, err := r.queryUsers(ctx, userFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return users[0], nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	users, err := r.queryUsers(ctx, userFindQuery+" WHERE lower(email) = lower($1)", email)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return users[0], nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	query := `
		INSERT INTO users (
			id, tenant_id, email, first_name, last_name, role,
			is_system_admin, password_hash, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(
		ctx,
		query,
		u.ID().String(),
		u.TenantID().String(),
		u.Email(),
		u.FirstName(),
		u.LastName(),
		string(u.Role()),
		u.IsSystemAdmin(),
		mapping.ValueToSQLNullString(u.PasswordHash()),
		u.CreatedAt(),
		u.UpdatedAt(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert user")
	}

	return r.GetByID(ctx, u.ID())
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) (*user.User, error) {
	query := `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, role = $4,
		    is_system_admin = $5, password_hash = $6, updated_at = $7
		WHERE id = $8
	`
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(
		ctx,
		query,
		u.Email(),
		u.FirstName(),
		u.LastName(),
		string(u.Role()),
		u.IsSystemAdmin(),
		mapping.ValueToSQLNullString(u.PasswordHash()),
		u.UpdatedAt(),
		u.ID().String(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to update user")
	}

	return r.GetByID(ctx, u.ID())
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	return nil
}

// CountByTenant counts against durable storage inside the caller's
// transaction. Limit checks must not trust cached tenant state.
func (r *UserRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1`, tenantID.String()).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count users")
	}
	return count, nil
}

func (r *UserRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*user.User, error) {
	return r.queryUsers(ctx, userFindQuery+" WHERE tenant_id = $1 ORDER BY created_at", tenantID.String())
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID,
			&u.TenantID,
			&u.Email,
			&u.FirstName,
			&u.LastName,
			&u.Role,
			&u.IsSystemAdmin,
			&u.PasswordHash,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan user row")
		}
		domainUser, err := toDomainUser(&u)
		if err != nil {
			return nil, err
		}
		users = append(users, domainUser)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return users, nil
}

func toDomainUser(u *models.User) (*user.User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user id")
	}
	tenantID, err := uuid.Parse(u.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user tenant id")
	}

	return user.New(
		u.FirstName,
		u.LastName,
		u.Email,
		user.WithID(id),
		user.WithTenantID(tenantID),
		user.WithRole(user.Role(u.Role)),
		user.WithSystemAdmin(u.IsSystemAdmin),
		user.WithPasswordHash(mapping.SQLNullStringToValue(u.PasswordHash)),
		user.WithCreatedAt(u.CreatedAt),
		user.WithUpdatedAt(u.UpdatedAt),
	), nil
}
