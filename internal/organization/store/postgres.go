package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truconn/internal/organization/models"
	"truconn/internal/platform/postgres"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
)

// PostgresStore persists the directory in the organizations table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const organizationColumns = `id, name, sector, status, registered_at, updated_at`

func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, org *models.Organization) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, name_key, sector, status, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(org.ID), org.Name, org.NameKey(), org.Sector, string(org.Status), org.RegisteredAt, org.UpdatedAt,
	)
	if postgres.HasCode(err, postgres.CodeUniqueViolation) {
		return fmt.Errorf("organization name %q: %w", org.Name, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.OrganizationID) (*models.Organization, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, uuid.UUID(id))
	return scanOrganization(row)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Organization, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE name_key = $1`, models.NameKey(name))
	return scanOrganization(row)
}

func (s *PostgresStore) FindMany(ctx context.Context, ids []domain.OrganizationID) (map[domain.OrganizationID]*models.Organization, error) {
	raw := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		raw[i] = uuid.UUID(id)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()
	out := make(map[domain.OrganizationID]*models.Organization, len(ids))
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out[org.ID] = org
	}
	return out, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context, status models.Status) ([]*models.Organization, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+organizationColumns+` FROM organizations
		WHERE $1 = '' OR status = $1
		ORDER BY name_key`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	var out []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// Execute locks the row with FOR UPDATE for the duration of validate and mutate.
func (s *PostgresStore) Execute(ctx context.Context, id domain.OrganizationID, validate func(*models.Organization) error, mutate func(*models.Organization)) (*models.Organization, error) {
	var out *models.Organization
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
		org, err := scanOrganization(row)
		if err != nil {
			return err
		}
		if err := validate(org); err != nil {
			return err
		}
		mutate(org)
		if _, err := tx.Exec(ctx, `
			UPDATE organizations SET sector = $2, status = $3, updated_at = $4 WHERE id = $1`,
			uuid.UUID(org.ID), org.Sector, string(org.Status), org.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update organization: %w", err)
		}
		out = org
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var (
		org    models.Organization
		id     uuid.UUID
		status string
	)
	err := row.Scan(&id, &org.Name, &org.Sector, &status, &org.RegisteredAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.ID = domain.OrganizationID(id)
	org.Status = models.Status(status)
	return &org, nil
}
