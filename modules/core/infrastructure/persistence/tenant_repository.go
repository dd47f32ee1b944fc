package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence/models"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/mapping"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

var (
	ErrTenantNotFound = fmt.Errorf("tenant not found")
)

const (
	tenantFindQuery = `
		SELECT id, name, subdomain, contact_email, contact_phone, address,
		       status, status_reason, activated_at, suspended_at, config,
		       api_key, api_key_rotated_at, is_system, created_by, updated_by,
		       created_at, updated_at
		FROM tenants`
)

type TenantRepository struct{}

func NewTenantRepository() tenant.Repository {
	return &TenantRepository{}
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	query := tenantFindQuery + " WHERE id = $1"
	tenants, err := r.queryTenants(ctx, query, id.String())
	if err != nil {
		return nil, err
	}

	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}

	return tenants[0], nil
}

func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	query := tenantFindQuery + " WHERE subdomain = $1"
	tenants, err := r.queryTenants(ctx, query, tenant.NormalizeSubdomain(subdomain))
	if err != nil {
		return nil, err
	}

	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}

	return tenants[0], nil
}

// IsSubdomainAvailable checks durable storage directly. The cache is never
// consulted so concurrent creations cannot race a stale entry.
func (r *TenantRepository) IsSubdomainAvailable(ctx context.Context, subdomain string, excludeID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	query := `SELECT COUNT(*) FROM tenants WHERE subdomain = $1 AND id <> $2`
	if err := tx.QueryRow(ctx, query, tenant.NormalizeSubdomain(subdomain), excludeID.String()).Scan(&count); err != nil {
		return false, errors.Wrap(err, "failed to check subdomain availability")
	}
	return count == 0, nil
}

func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	subdomain := tenant.NormalizeSubdomain(t.Subdomain())

	available, err := r.IsSubdomainAvailable(ctx, subdomain, t.ID())
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, serrors.NewSubdomainConflictError(subdomain)
	}

	query := `
		INSERT INTO tenants (
			id, name, subdomain, contact_email, contact_phone, address,
			status, status_reason, activated_at, suspended_at, config,
			api_key, api_key_rotated_at, is_system, created_by, updated_by,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	config, err := json.Marshal(t.Config())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tenant config")
	}

	var idStr string
	if err := tx.QueryRow(
		ctx,
		query,
		t.ID().String(),
		t.Name(),
		subdomain,
		mapping.ValueToSQLNullString(t.ContactEmail()),
		mapping.ValueToSQLNullString(t.ContactPhone()),
		mapping.ValueToSQLNullString(t.Address()),
		t.Status().String(),
		mapping.ValueToSQLNullString(t.StatusReason()),
		mapping.PointerToSQLNullTime(t.ActivatedAt()),
		mapping.PointerToSQLNullTime(t.SuspendedAt()),
		config,
		mapping.PointerToSQLNullString(t.APIKey()),
		mapping.PointerToSQLNullTime(t.APIKeyRotatedAt()),
		t.IsSystem(),
		uuidToSQLNullString(t.CreatedBy()),
		uuidToSQLNullString(t.UpdatedBy()),
		t.CreatedAt(),
		t.UpdatedAt(),
	).Scan(&idStr); err != nil {
		return nil, errors.Wrap(err, "failed to insert tenant")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	subdomain := tenant.NormalizeSubdomain(t.Subdomain())

	available, err := r.IsSubdomainAvailable(ctx, subdomain, t.ID())
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, serrors.NewSubdomainConflictError(subdomain)
	}

	query := `
		UPDATE tenants
		SET name = $1, subdomain = $2, contact_email = $3, contact_phone = $4,
		    address = $5, status = $6, status_reason = $7, activated_at = $8,
		    suspended_at = $9, config = $10, api_key = $11,
		    api_key_rotated_at = $12, updated_by = $13, updated_at = $14
		WHERE id = $15
		RETURNING id
	`
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	config, err := json.Marshal(t.Config())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tenant config")
	}

	var idStr string
	if err := tx.QueryRow(
		ctx,
		query,
		t.Name(),
		subdomain,
		mapping.ValueToSQLNullString(t.ContactEmail()),
		mapping.ValueToSQLNullString(t.ContactPhone()),
		mapping.ValueToSQLNullString(t.Address()),
		t.Status().String(),
		mapping.ValueToSQLNullString(t.StatusReason()),
		mapping.PointerToSQLNullTime(t.ActivatedAt()),
		mapping.PointerToSQLNullTime(t.SuspendedAt()),
		config,
		mapping.PointerToSQLNullString(t.APIKey()),
		mapping.PointerToSQLNullTime(t.APIKeyRotatedAt()),
		uuidToSQLNullString(t.UpdatedBy()),
		t.UpdatedAt(),
		t.ID().String(),
	).Scan(&idStr); err != nil {
		return nil, errors.Wrap(err, "failed to update tenant")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status tenant.Status, reason string) (*tenant.Tenant, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.TransitionTo(status, reason); err != nil {
		return nil, err
	}

	query := `
		UPDATE tenants
		SET status = $1, status_reason = $2, activated_at = $3, suspended_at = $4, updated_at = $5
		WHERE id = $6
	`
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(
		ctx,
		query,
		current.Status().String(),
		mapping.ValueToSQLNullString(current.StatusReason()),
		mapping.PointerToSQLNullTime(current.ActivatedAt()),
		mapping.PointerToSQLNullTime(current.SuspendedAt()),
		current.UpdatedAt(),
		id.String(),
	); err != nil {
		return nil, errors.Wrap(err, "failed to update tenant status")
	}

	return current, nil
}

// Delete soft-deletes: tenants referenced by owned data are only ever moved
// to PendingDeletion.
func (r *TenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.UpdateStatus(ctx, id, tenant.StatusPendingDeletion, "deletion requested")
	return err
}

func (r *TenantRepository) List(ctx context.Context) ([]*tenant.Tenant, error) {
	return r.queryTenants(ctx, tenantFindQuery+" ORDER BY created_at")
}

func (r *TenantRepository) queryTenants(ctx context.Context, query string, args ...interface{}) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Subdomain,
			&t.ContactEmail,
			&t.ContactPhone,
			&t.Address,
			&t.Status,
			&t.StatusReason,
			&t.ActivatedAt,
			&t.SuspendedAt,
			&t.Config,
			&t.APIKey,
			&t.APIKeyRotatedAt,
			&t.IsSystem,
			&t.CreatedBy,
			&t.UpdatedBy,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tenant row")
		}
		domainTenant, err := toDomainTenant(&t)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, domainTenant)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	return tenants, nil
}

func toDomainTenant(t *models.Tenant) (*tenant.Tenant, error) {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tenant id")
	}

	config := tenant.DefaultConfig()
	if len(t.Config) > 0 {
		if err := json.Unmarshal(t.Config, &config); err != nil {
			return nil, errors.Wrap(err, "invalid tenant config")
		}
	}

	options := []tenant.Option{
		tenant.WithID(id),
		tenant.WithStatus(tenant.Status(t.Status)),
		tenant.WithStatusReason(mapping.SQLNullStringToValue(t.StatusReason)),
		tenant.WithContactEmail(mapping.SQLNullStringToValue(t.ContactEmail)),
		tenant.WithContactPhone(mapping.SQLNullStringToValue(t.ContactPhone)),
		tenant.WithAddress(mapping.SQLNullStringToValue(t.Address)),
		tenant.WithActivatedAt(mapping.SQLNullTimeToPointer(t.ActivatedAt)),
		tenant.WithSuspendedAt(mapping.SQLNullTimeToPointer(t.SuspendedAt)),
		tenant.WithConfig(config),
		tenant.WithAPIKey(mapping.SQLNullStringToPointer(t.APIKey), mapping.SQLNullTimeToPointer(t.APIKeyRotatedAt)),
		tenant.WithSystemFlag(t.IsSystem),
		tenant.WithCreatedAt(t.CreatedAt),
		tenant.WithUpdatedAt(t.UpdatedAt),
	}

	if t.CreatedBy.Valid {
		if createdBy, err := uuid.Parse(t.CreatedBy.String); err == nil {
			options = append(options, tenant.WithCreatedBy(createdBy))
		}
	}
	if t.UpdatedBy.Valid {
		if updatedBy, err := uuid.Parse(t.UpdatedBy.String); err == nil {
			options = append(options, tenant.WithUpdatedBy(updatedBy))
		}
	}

	return tenant.New(t.Name, t.Subdomain, options...), nil
}

func uuidToSQLNullString(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}
