package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type visitorRepository struct {
	db querier
}

const visitorColumns = `id, name, type, id_type, id_number, date_of_birth, created_at, archived, archived_at`

func (r *visitorRepository) Create(ctx context.Context, visitor *domain.Visitor) error {
	query := `
		INSERT INTO visitors (id, name, type, id_type, id_number, date_of_birth, created_at, archived, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if visitor.ID == uuid.Nil {
		visitor.ID = uuid.New()
	}
	if visitor.CreatedAt.IsZero() {
		visitor.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		visitor.ID,
		visitor.Name,
		visitor.Type,
		visitor.IDType,
		visitor.IDNumber,
		visitor.DateOfBirth,
		visitor.CreatedAt,
		visitor.Archived,
		visitor.ArchivedAt,
	)

	return mapError(err)
}

func (r *visitorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Visitor, error) {
	return r.get(ctx, `SELECT `+visitorColumns+` FROM visitors WHERE id = $1`, id)
}

func (r *visitorRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Visitor, error) {
	return r.get(ctx, `SELECT `+visitorColumns+` FROM visitors WHERE id = $1 FOR UPDATE`, id)
}

func (r *visitorRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Visitor, error) {
	visitor, err := scanVisitor(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVisitorNotFound
		}
		return nil, err
	}
	return visitor, nil
}

func (r *visitorRepository) ListNotArchived(ctx context.Context) ([]*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE archived = FALSE ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visitors []*domain.Visitor
	for rows.Next() {
		visitor, err := scanVisitor(rows)
		if err != nil {
			return nil, err
		}
		visitors = append(visitors, visitor)
	}

	return visitors, rows.Err()
}

func (r *visitorRepository) MarkArchived(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE visitors
		SET archived = TRUE, archived_at = $2
		WHERE id = ANY($1::uuid[]) AND archived = FALSE
	`

	result, err := r.db.Exec(ctx, query, uuidStrings(ids), at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func scanVisitor(row pgx.Row) (*domain.Visitor, error) {
	visitor := &domain.Visitor{}
	err := row.Scan(
		&visitor.ID,
		&visitor.Name,
		&visitor.Type,
		&visitor.IDType,
		&visitor.IDNumber,
		&visitor.DateOfBirth,
		&visitor.CreatedAt,
		&visitor.Archived,
		&visitor.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	return visitor, nil
}

// uuidStrings готовит аргумент для $n::uuid[]
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
