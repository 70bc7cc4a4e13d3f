// Package postgres stores the access log in audit_entries. The table has no
// update or delete path.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truconn/internal/accesslog/models"
	"truconn/pkg/domain"
)

// appendLockKey serializes appenders so occurred_at never decreases with id.
const appendLockKey int64 = 0x74727563_6f6e6e01

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Append(ctx context.Context, entry *models.AuditEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return fmt.Errorf("lock audit trail: %w", err)
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO audit_entries
				(organization_id, organization_name, citizen_id, data_type, occurred_at, purpose, access_type, authorized)
			VALUES ($1, $2, $3, $4,
				GREATEST($5::timestamptz, COALESCE((SELECT max(occurred_at) FROM audit_entries), $5::timestamptz)),
				$6, $7, $8)
			RETURNING id, occurred_at`,
			uuid.UUID(entry.OrganizationID), entry.OrganizationName, uuid.UUID(entry.CitizenID), string(entry.DataType),
			entry.DateTime, entry.Purpose, string(entry.AccessType), entry.Authorized,
		).Scan(&entry.ID, &entry.DateTime)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		return nil
	})
}

func (s *Store) Head(ctx context.Context) (int64, error) {
	var head int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(max(id), 0) FROM audit_entries`).Scan(&head); err != nil {
		return 0, fmt.Errorf("audit head: %w", err)
	}
	return head, nil
}

// Page returns up to limit entries with id < before, newest first. before <= 0
// starts at the newest entry.
func (s *Store) Page(ctx context.Context, filter models.Filter, before int64, limit int) ([]*models.AuditEntry, error) {
	var org, citizen *uuid.UUID
	if filter.OrganizationID != nil {
		u := uuid.UUID(*filter.OrganizationID)
		org = &u
	}
	if filter.CitizenID != nil {
		u := uuid.UUID(*filter.CitizenID)
		citizen = &u
	}
	var from, to any
	if !filter.From.IsZero() {
		from = filter.From
	}
	if !filter.To.IsZero() {
		to = filter.To
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, organization_name, citizen_id, data_type, occurred_at, purpose, access_type, authorized
		FROM audit_entries
		WHERE ($1::bigint <= 0 OR id < $1)
		  AND ($2::uuid IS NULL OR organization_id = $2)
		  AND ($3::uuid IS NULL OR citizen_id = $3)
		  AND ($4::timestamptz IS NULL OR occurred_at >= $4)
		  AND ($5::timestamptz IS NULL OR occurred_at <= $5)
		  AND ($6 = '' OR strpos(lower(organization_name), lower($6)) > 0 OR strpos(lower(purpose), lower($6)) > 0)
		ORDER BY id DESC
		LIMIT $7`,
		before, org, citizen, from, to, filter.Text, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AuditEntry, 0, limit)
	for rows.Next() {
		var (
			e                  models.AuditEntry
			orgID, citizenID   uuid.UUID
			dataType, accessTy string
		)
		if err := rows.Scan(&e.ID, &orgID, &e.OrganizationName, &citizenID, &dataType, &e.DateTime, &e.Purpose, &accessTy, &e.Authorized); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.OrganizationID = domain.OrganizationID(orgID)
		e.CitizenID = domain.CitizenID(citizenID)
		e.DataType = domain.DataCategory(dataType)
		e.AccessType = models.AccessType(accessTy)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) CountByOrganization(ctx context.Context, orgID domain.OrganizationID) (models.Counts, error) {
	var c models.Counts
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE NOT authorized)
		FROM audit_entries WHERE organization_id = $1`, uuid.UUID(orgID)).Scan(&c.Total, &c.Unauthorized)
	if err != nil {
		return c, fmt.Errorf("count audit entries: %w", err)
	}
	return c, nil
}
