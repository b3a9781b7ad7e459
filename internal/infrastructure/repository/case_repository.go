package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-platform/custodia-backend/internal/domain/casefile"
	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(pool *pgxpool.Pool) casefile.Repository {
	return &caseRepository{pool: pool}
}

const caseColumns = `
	id, case_number, name, description, status,
	assigned, timeline, evidence_count,
	created_by, created_at, updated_at
`

func (r *caseRepository) Create(ctx context.Context, c *casefile.Case) error {
	assignedJSON, err := json.Marshal(c.Assigned)
	if err != nil {
		return errors.NewStorageError("failed to marshal assignments").WithCause(err)
	}
	timelineJSON, err := json.Marshal(c.Timeline)
	if err != nil {
		return errors.NewStorageError("failed to marshal timeline").WithCause(err)
	}

	query := `
		INSERT INTO cases (
			id, case_number, name, description, status,
			assigned, timeline, evidence_count,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		c.ID, c.Number, c.Name, c.Description, c.Status.String(),
		assignedJSON, timelineJSON, c.EvidenceCount,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("CASE_EXISTS",
				"case number already registered").WithCause(err)
		}
		return errors.NewStorageError("failed to create case").WithCause(err)
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id uuid.UUID) (*casefile.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE id = $1`, caseColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *caseRepository) GetByNumber(ctx context.Context, number string) (*casefile.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE case_number = $1`, caseColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, number))
}

func (r *caseRepository) scanOne(row pgx.Row) (*casefile.Case, error) {
	c, err := scanCase(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewCaseNotFoundError()
		}
		return nil, err
	}
	return c, nil
}

func scanCase(row pgx.Row) (*casefile.Case, error) {
	var c casefile.Case
	var statusStr string
	var assignedJSON, timelineJSON []byte

	err := row.Scan(
		&c.ID, &c.Number, &c.Name, &c.Description, &statusStr,
		&assignedJSON, &timelineJSON, &c.EvidenceCount,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, errors.NewStorageError("failed to get case").WithCause(err)
	}

	status, ok := casefile.ParseStatus(statusStr)
	if !ok {
		return nil, errors.NewStorageError("corrupt case status: " + statusStr)
	}
	c.Status = status

	if err := json.Unmarshal(assignedJSON, &c.Assigned); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal assignments").WithCause(err)
	}
	if err := json.Unmarshal(timelineJSON, &c.Timeline); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal timeline").WithCause(err)
	}
	return &c, nil
}

func (r *caseRepository) Update(ctx context.Context, c *casefile.Case) error {
	assignedJSON, err := json.Marshal(c.Assigned)
	if err != nil {
		return errors.NewStorageError("failed to marshal assignments").WithCause(err)
	}

	query := `
		UPDATE cases
		SET name = $2, description = $3, status = $4, assigned = $5,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		c.ID, c.Name, c.Description, c.Status.String(), assignedJSON,
	)
	if err != nil {
		return errors.NewStorageError("failed to update case").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewCaseNotFoundError()
	}
	return nil
}

func (r *caseRepository) List(ctx context.Context, limit, offset int) ([]*casefile.Case, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM cases
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, caseColumns)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.NewStorageError("failed to list cases").WithCause(err)
	}
	defer rows.Close()

	var cases []*casefile.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate cases").WithCause(err)
	}
	return cases, nil
}

// AppendTimeline pushes a single entry onto the JSONB timeline without
// reading and rewriting the whole document.
func (r *caseRepository) AppendTimeline(ctx context.Context, caseID uuid.UUID, entry casefile.TimelineEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return errors.NewStorageError("failed to marshal timeline entry").WithCause(err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE cases
		SET timeline = timeline || $2::jsonb, updated_at = NOW()
		WHERE id = $1
	`, caseID, entryJSON)
	if err != nil {
		return errors.NewStorageError("failed to append timeline entry").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewCaseNotFoundError()
	}
	return nil
}

func (r *caseRepository) IncrementEvidenceCount(ctx context.Context, caseID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases
		SET evidence_count = evidence_count + 1, updated_at = NOW()
		WHERE id = $1
	`, caseID)
	if err != nil {
		return errors.NewStorageError("failed to increment evidence count").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewCaseNotFoundError()
	}
	return nil
}
