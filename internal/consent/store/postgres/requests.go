package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"truconn/internal/consent/models"
	"truconn/internal/platform/postgres"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
)

const requestColumns = `id, citizen_id, organization_id, data_type, purpose, status, requested_at, decided_at`

func (s *Store) FindRequest(ctx context.Context, id domain.ConsentRequestID) (*models.ConsentRequest, error) {
	req, err := scanRequest(s.q(ctx).QueryRow(ctx, `SELECT `+requestColumns+` FROM consent_requests WHERE id = $1`, uuid.UUID(id)))
	if err != nil {
		return nil, err
	}
	if err := s.loadClarifications(ctx, []*models.ConsentRequest{req}); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) ListRequestsByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]*models.ConsentRequest, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM consent_requests WHERE citizen_id = $1`, uuid.UUID(citizenID))
}

func (s *Store) ListRequestsByOrganization(ctx context.Context, orgID domain.OrganizationID) ([]*models.ConsentRequest, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM consent_requests WHERE organization_id = $1`, uuid.UUID(orgID))
}

func (s *Store) queryRequests(ctx context.Context, sql string, args ...any) ([]*models.ConsentRequest, error) {
	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	var out []*models.ConsentRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	if err := s.loadClarifications(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadClarifications(ctx context.Context, reqs []*models.ConsentRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(reqs))
	byID := make(map[uuid.UUID]*models.ConsentRequest, len(reqs))
	for i, r := range reqs {
		ids[i] = uuid.UUID(r.ID)
		byID[ids[i]] = r
	}
	rows, err := s.q(ctx).Query(ctx, `
		SELECT request_id, author_role, author_id, message, created_at
		FROM request_clarifications
		WHERE request_id = ANY($1)
		ORDER BY request_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("query clarifications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			reqID uuid.UUID
			role  string
			c     models.Clarification
		)
		if err := rows.Scan(&reqID, &role, &c.AuthorID, &c.Message, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan clarification: %w", err)
		}
		c.AuthorRole = domain.Role(role)
		if r, ok := byID[reqID]; ok {
			r.Clarifications = append(r.Clarifications, c)
		}
	}
	return rows.Err()
}

// SaveRequest upserts the request row and appends clarifications not yet
// stored. Clarifications are append-only so position is their key.
func (s *Store) SaveRequest(ctx context.Context, r *models.ConsentRequest) error {
	q := s.q(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO consent_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			decided_at = EXCLUDED.decided_at`,
		uuid.UUID(r.ID), uuid.UUID(r.CitizenID), uuid.UUID(r.OrganizationID), string(r.DataType), r.Purpose,
		string(r.Status), r.RequestedAt, r.DecidedAt,
	)
	if postgres.HasCode(err, postgres.CodeForeignKeyViolation) {
		return fmt.Errorf("request references unknown citizen or organization: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save request: %w", err)
	}
	for i, c := range r.Clarifications {
		_, err := q.Exec(ctx, `
			INSERT INTO request_clarifications (request_id, seq, author_role, author_id, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (request_id, seq) DO NOTHING`,
			uuid.UUID(r.ID), i, string(c.AuthorRole), c.AuthorID, c.Message, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("save clarification: %w", err)
		}
	}
	return nil
}

func scanRequest(row pgx.Row) (*models.ConsentRequest, error) {
	var (
		r                models.ConsentRequest
		id, citizen, org uuid.UUID
		dataType, status string
	)
	err := row.Scan(&id, &citizen, &org, &dataType, &r.Purpose, &status, &r.RequestedAt, &r.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	r.ID = domain.ConsentRequestID(id)
	r.CitizenID = domain.CitizenID(citizen)
	r.OrganizationID = domain.OrganizationID(org)
	r.DataType = domain.DataCategory(dataType)
	r.Status = models.RequestStatus(status)
	r.Clarifications = []models.Clarification{}
	return &r, nil
}
