// Package postgres persists consent state. Every method runs on the
// transaction carried by ctx when there is one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truconn/internal/consent/models"
	"truconn/internal/platform/postgres"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
	txcontext "truconn/pkg/platform/tx"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) q(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFrom(ctx, s.pool)
}

func (s *Store) CreateCitizen(ctx context.Context, c *models.Citizen) error {
	_, err := s.q(ctx).Exec(ctx, `INSERT INTO citizens (id, onboarded_at) VALUES ($1, $2)`, uuid.UUID(c.ID), c.OnboardedAt)
	if postgres.HasCode(err, postgres.CodeUniqueViolation) {
		return fmt.Errorf("citizen %s: %w", c.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert citizen: %w", err)
	}
	return nil
}

func (s *Store) FindCitizen(ctx context.Context, id domain.CitizenID) (*models.Citizen, error) {
	var (
		raw uuid.UUID
		c   models.Citizen
	)
	err := s.q(ctx).QueryRow(ctx, `SELECT id, onboarded_at FROM citizens WHERE id = $1`, uuid.UUID(id)).Scan(&raw, &c.OnboardedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find citizen: %w", err)
	}
	c.ID = domain.CitizenID(raw)
	return &c, nil
}

const consentColumns = `id, citizen_id, category, allowed, organizations, duration, details, renewed_at, updated_at`

func (s *Store) FindConsent(ctx context.Context, citizenID domain.CitizenID, category domain.DataCategory) (*models.Consent, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+consentColumns+` FROM consents WHERE citizen_id = $1 AND category = $2`,
		uuid.UUID(citizenID), string(category))
	return scanConsent(row)
}

func (s *Store) ListConsents(ctx context.Context, citizenID domain.CitizenID) ([]*models.Consent, error) {
	return s.queryConsents(ctx, `SELECT `+consentColumns+` FROM consents WHERE citizen_id = $1 ORDER BY category`, uuid.UUID(citizenID))
}

func (s *Store) ListConsentsCovering(ctx context.Context, orgID domain.OrganizationID) ([]*models.Consent, error) {
	return s.queryConsents(ctx, `SELECT `+consentColumns+` FROM consents WHERE allowed AND $1 = ANY(organizations)`, uuid.UUID(orgID))
}

func (s *Store) queryConsents(ctx context.Context, sql string, args ...any) ([]*models.Consent, error) {
	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query consents: %w", err)
	}
	defer rows.Close()
	var out []*models.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SaveConsent(ctx context.Context, c *models.Consent) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO consents (`+consentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (citizen_id, category) DO UPDATE SET
			allowed = EXCLUDED.allowed,
			organizations = EXCLUDED.organizations,
			duration = EXCLUDED.duration,
			details = EXCLUDED.details,
			renewed_at = EXCLUDED.renewed_at,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(c.ID), uuid.UUID(c.CitizenID), string(c.Category), c.Allowed, orgUUIDs(c.Organizations),
		c.Duration, c.Details, c.RenewedAt, c.UpdatedAt,
	)
	if postgres.HasCode(err, postgres.CodeForeignKeyViolation) {
		return fmt.Errorf("consent for unknown citizen %s: %w", c.CitizenID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func scanConsent(row pgx.Row) (*models.Consent, error) {
	var (
		c           models.Consent
		id, citizen uuid.UUID
		category    string
		orgs        []uuid.UUID
	)
	err := row.Scan(&id, &citizen, &category, &c.Allowed, &orgs, &c.Duration, &c.Details, &c.RenewedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan consent: %w", err)
	}
	c.ID = domain.ConsentID(id)
	c.CitizenID = domain.CitizenID(citizen)
	c.Category = domain.DataCategory(category)
	c.Organizations = make([]domain.OrganizationID, len(orgs))
	for i, o := range orgs {
		c.Organizations[i] = domain.OrganizationID(o)
	}
	return &c, nil
}

func orgUUIDs(ids []domain.OrganizationID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		out[i] = uuid.UUID(id)
	}
	return out
}

const grantColumns = `id, citizen_id, organization_id, data_type, purpose, status, created_at, last_accessed_at, revoked_at`

func (s *Store) FindGrant(ctx context.Context, id domain.GrantID) (*models.AccessGrant, error) {
	return scanGrant(s.q(ctx).QueryRow(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE id = $1`, uuid.UUID(id)))
}

func (s *Store) FindGrantByTriple(ctx context.Context, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory) (*models.AccessGrant, error) {
	return scanGrant(s.q(ctx).QueryRow(ctx, `
		SELECT `+grantColumns+` FROM access_grants
		WHERE citizen_id = $1 AND organization_id = $2 AND data_type = $3`,
		uuid.UUID(citizenID), uuid.UUID(orgID), string(dataType)))
}

func (s *Store) ListGrantsByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]*models.AccessGrant, error) {
	return s.queryGrants(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE citizen_id = $1`, uuid.UUID(citizenID))
}

func (s *Store) ListGrantsByOrganization(ctx context.Context, orgID domain.OrganizationID) ([]*models.AccessGrant, error) {
	return s.queryGrants(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE organization_id = $1`, uuid.UUID(orgID))
}

func (s *Store) queryGrants(ctx context.Context, sql string, args ...any) ([]*models.AccessGrant, error) {
	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()
	var out []*models.AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SaveGrant upserts by id. last_accessed_at only moves forward so a
// concurrent TouchGrants is never undone.
func (s *Store) SaveGrant(ctx context.Context, g *models.AccessGrant) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO access_grants (`+grantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			purpose = EXCLUDED.purpose,
			status = EXCLUDED.status,
			revoked_at = EXCLUDED.revoked_at,
			last_accessed_at = GREATEST(access_grants.last_accessed_at, EXCLUDED.last_accessed_at)`,
		uuid.UUID(g.ID), uuid.UUID(g.CitizenID), uuid.UUID(g.OrganizationID), string(g.DataType), g.Purpose,
		string(g.Status), g.CreatedAt, g.LastAccessedAt, g.RevokedAt,
	)
	switch {
	case postgres.HasCode(err, postgres.CodeUniqueViolation):
		return fmt.Errorf("grant %s/%s/%s: %w", g.CitizenID, g.OrganizationID, g.DataType, sentinel.ErrConflict)
	case postgres.HasCode(err, postgres.CodeForeignKeyViolation):
		return fmt.Errorf("grant references unknown citizen or organization: %w", sentinel.ErrNotFound)
	case err != nil:
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

func (s *Store) TouchGrants(ctx context.Context, ids []domain.GrantID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		raw[i] = uuid.UUID(id)
	}
	_, err := s.q(ctx).Exec(ctx, `
		UPDATE access_grants
		SET last_accessed_at = GREATEST(last_accessed_at, $2)
		WHERE id = ANY($1)`, raw, at)
	if err != nil {
		return fmt.Errorf("touch grants: %w", err)
	}
	return nil
}

func scanGrant(row pgx.Row) (*models.AccessGrant, error) {
	var (
		g                models.AccessGrant
		id, citizen, org uuid.UUID
		dataType, status string
	)
	err := row.Scan(&id, &citizen, &org, &dataType, &g.Purpose, &status, &g.CreatedAt, &g.LastAccessedAt, &g.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	g.ID = domain.GrantID(id)
	g.CitizenID = domain.CitizenID(citizen)
	g.OrganizationID = domain.OrganizationID(org)
	g.DataType = domain.DataCategory(dataType)
	g.Status = models.GrantStatus(status)
	return &g, nil
}
