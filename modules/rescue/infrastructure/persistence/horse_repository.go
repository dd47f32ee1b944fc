package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/rescue/domain/entities/horse"
	"github.com/rescueranger/rescueranger/modules/rescue/infrastructure/persistence/models"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/isolation"
	"github.com/rescueranger/rescueranger/pkg/mapping"
)

var ErrHorseNotFound = fmt.Errorf("horse not found")

// KindHorse is the registered tenant-owned entity kind for horses.
const KindHorse = "horse"

const horseFindQuery = `
	SELECT id, tenant_id, name, breed, microchip, status, intake_date, notes,
	       created_at, updated_at
	FROM horses`

// HorseRepository never issues a query without an ownership predicate from
// the enforcer: tenant filtering is structural, not per-call-site.
type HorseRepository struct {
	enforcer *isolation.Enforcer
}

func NewHorseRepository(enforcer *isolation.Enforcer) (horse.Repository, error) {
	if err := enforcer.Registry().Register(isolation.Kind{
		Name:  KindHorse,
		Table: "horses",
	}); err != nil {
		return nil, err
	}
	return &HorseRepository{enforcer: enforcer}, nil
}

func (r *HorseRepository) GetByID(ctx context.Context, id uuid.UUID) (*horse.Horse, error) {
	scope, err := r.enforcer.Scope(ctx, KindHorse)
	if err != nil {
		return nil, err
	}

	predicate, args := scope.Where(2)
	query := horseFindQuery + " WHERE id = $1 AND " + predicate

	horses, err := r.queryHorses(ctx, query, append([]any{id.String()}, args...)...)
	if err != nil {
		return nil, err
	}
	if len(horses) == 0 {
		return nil, ErrHorseNotFound
	}
	return horses[0], nil
}

func (r *HorseRepository) List(ctx context.Context) ([]*horse.Horse, error) {
	scope, err := r.enforcer.Scope(ctx, KindHorse)
	if err != nil {
		return nil, err
	}

	predicate, args := scope.Where(1)
	return r.queryHorses(ctx, horseFindQuery+" WHERE "+predicate+" ORDER BY created_at", args...)
}

func (r *HorseRepository) ListAllTenants(ctx context.Context, operation string) ([]*horse.Horse, error) {
	scope, err := r.enforcer.AllTenants(ctx, KindHorse, operation)
	if err != nil {
		return nil, err
	}

	predicate, args := scope.Where(1)
	return r.queryHorses(ctx, horseFindQuery+" WHERE "+predicate+" ORDER BY tenant_id, created_at", args...)
}

func (r *HorseRepository) Count(ctx context.Context) (int64, error) {
	scope, err := r.enforcer.Scope(ctx, KindHorse)
	if err != nil {
		return 0, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	predicate, args := scope.Where(1)
	var count int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM horses WHERE "+predicate, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count horses")
	}
	return count, nil
}

func (r *HorseRepository) Create(ctx context.Context, h *horse.Horse) (*horse.Horse, error) {
	scope, err := r.enforcer.Scope(ctx, KindHorse)
	if err != nil {
		return nil, err
	}
	if err := scope.Stamp(h, false); err != nil {
		return nil, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO horses (
			id, tenant_id, name, breed, microchip, status, intake_date,
			notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := tx.Exec(
		ctx,
		query,
		h.ID().String(),
		h.TenantID().String(),
		h.Name(),
		mapping.ValueToSQLNullString(h.Breed()),
		mapping.ValueToSQLNullString(h.Microchip()),
		string(h.Status()),
		h.IntakeDate(),
		mapping.ValueToSQLNullString(h.Notes()),
		h.CreatedAt(),
		h.UpdatedAt(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert horse")
	}

	return r.GetByID(ctx, h.ID())
}

func (r *HorseRepository) Update(ctx context.Context, h *horse.Horse) (*horse.Horse, error) {
	scope, err := r.enforcer.Scope(ctx, KindHorse)
	if err != nil {
		return nil, err
	}
	if err := scope.Stamp(h, false); err != nil {
		return nil, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	predicate, args := scope.Where(9)
	query := `
		UPDATE horses
		SET name = $1, breed = $2, microchip = $3, status = $4,
		    intake_date = $5, notes = $6, updated_at = $7
		WHERE id = $8 AND ` + predicate

	updateArgs := []any{
		h.Name(),
		mapping.ValueToSQLNullString(h.Breed()),
		mapping.ValueToSQLNullString(h.Microchip()),
		string(h.Status()),
		h.IntakeDate(),
		mapping.ValueToSQLNullString(h.Notes()),
		h.UpdatedAt(),
		h.ID().String(),
	}

	tag, err := tx.Exec(ctx, query, append(updateArgs, args...)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update horse")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrHorseNotFound
	}

	return r.GetByID(ctx, h.ID())
}

func (r *HorseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := r.enforcer.Scope(ctx, KindHorse)
	if err != nil {
		return err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	predicate, args := scope.Where(2)
	tag, err := tx.Exec(ctx, "DELETE FROM horses WHERE id = $1 AND "+predicate, append([]any{id.String()}, args...)...)
	if err != nil {
		return errors.Wrap(err, "failed to delete horse")
	}
	if tag.RowsAffected() == 0 {
		return ErrHorseNotFound
	}
	return nil
}

func (r *HorseRepository) queryHorses(ctx context.Context, query string, args ...any) ([]*horse.Horse, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var horses []*horse.Horse
	for rows.Next() {
		var m models.Horse
		if err := rows.Scan(
			&m.ID,
			&m.TenantID,
			&m.Name,
			&m.Breed,
			&m.Microchip,
			&m.Status,
			&m.IntakeDate,
			&m.Notes,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan horse row")
		}
		domainHorse, err := toDomainHorse(&m)
		if err != nil {
			return nil, err
		}
		horses = append(horses, domainHorse)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return horses, nil
}

func toDomainHorse(m *models.Horse) (*horse.Horse, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid horse id")
	}
	tenantID, err := uuid.Parse(m.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid horse tenant id")
	}

	return horse.New(
		m.Name,
		horse.WithID(id),
		horse.WithTenantID(tenantID),
		horse.WithBreed(mapping.SQLNullStringToValue(m.Breed)),
		horse.WithMicrochip(mapping.SQLNullStringToValue(m.Microchip)),
		horse.WithStatus(horse.Status(m.Status)),
		horse.WithIntakeDate(m.IntakeDate),
		horse.WithNotes(mapping.SQLNullStringToValue(m.Notes)),
		horse.WithCreatedAt(m.CreatedAt),
		horse.WithUpdatedAt(m.UpdatedAt),
	), nil
}
