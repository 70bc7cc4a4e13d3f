package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truconn/internal/compliance/models"
	"truconn/internal/platform/postgres"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
)

// PostgresStore persists violations in the violations table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const violationColumns = `id, organization_id, issue_type, severity, description, detected_at, status, action_taken, updated_at`

func (s *PostgresStore) Create(ctx context.Context, v *models.Violation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO violations (`+violationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(v.ID), uuid.UUID(v.OrganizationID), string(v.IssueType), string(v.Severity),
		v.Description, v.DetectedAt, string(v.Status), v.ActionTaken, v.UpdatedAt,
	)
	switch {
	case postgres.HasCode(err, postgres.CodeUniqueViolation):
		return fmt.Errorf("violation %s: %w", v.ID, sentinel.ErrConflict)
	case postgres.HasCode(err, postgres.CodeForeignKeyViolation):
		return fmt.Errorf("organization %s: %w", v.OrganizationID, sentinel.ErrNotFound)
	case err != nil:
		return fmt.Errorf("insert violation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ViolationID) (*models.Violation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+violationColumns+` FROM violations WHERE id = $1`, uuid.UUID(id))
	return scanViolation(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ViolationFilter) ([]*models.Violation, error) {
	var org *uuid.UUID
	if filter.OrganizationID != nil {
		id := uuid.UUID(*filter.OrganizationID)
		org = &id
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+violationColumns+` FROM violations
		WHERE ($1::uuid IS NULL OR organization_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND (NOT $3 OR status <> 'resolved')
		ORDER BY detected_at DESC, id`,
		org, string(filter.Status), filter.Unresolved,
	)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Violation, 0)
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Execute locks the row with FOR UPDATE for the duration of validate and mutate.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ViolationID, validate func(*models.Violation) error, mutate func(*models.Violation)) (*models.Violation, error) {
	var out *models.Violation
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+violationColumns+` FROM violations WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
		v, err := scanViolation(row)
		if err != nil {
			return err
		}
		if err := validate(v); err != nil {
			return err
		}
		mutate(v)
		if _, err := tx.Exec(ctx, `
			UPDATE violations SET status = $2, action_taken = $3, updated_at = $4 WHERE id = $1`,
			uuid.UUID(v.ID), string(v.Status), v.ActionTaken, v.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update violation: %w", err)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanViolation(row pgx.Row) (*models.Violation, error) {
	var (
		v                       models.Violation
		id, org                 uuid.UUID
		issue, severity, status string
	)
	err := row.Scan(&id, &org, &issue, &severity, &v.Description, &v.DetectedAt, &status, &v.ActionTaken, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan violation: %w", err)
	}
	v.ID = domain.ViolationID(id)
	v.OrganizationID = domain.OrganizationID(org)
	v.IssueType = models.IssueType(issue)
	v.Severity = models.Severity(severity)
	v.Status = models.ViolationStatus(status)
	return &v, nil
}
