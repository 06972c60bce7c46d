package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type visitorPassRepository struct {
	db querier
}

const passColumns = `id, pass_number, external_id, status, display_code, origin_location,
	       origin_station_id, created_at, updated_at`

func (r *visitorPassRepository) Create(ctx context.Context, pass *domain.VisitorPass) error {
	query := `
		INSERT INTO visitor_passes (id, pass_number, external_id, status, display_code, origin_location,
		                            origin_station_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if pass.ID == uuid.Nil {
		pass.ID = uuid.New()
	}
	if pass.CreatedAt.IsZero() {
		pass.CreatedAt = time.Now()
	}
	pass.UpdatedAt = pass.CreatedAt

	_, err := r.db.Exec(ctx, query,
		pass.ID,
		pass.PassNumber,
		pass.ExternalID,
		pass.Status,
		pass.DisplayCode,
		pass.OriginLocation,
		pass.OriginStationID,
		pass.CreatedAt,
		pass.UpdatedAt,
	)

	return mapError(err)
}

func (r *visitorPassRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	return r.get(ctx, `SELECT `+passColumns+` FROM visitor_passes WHERE id = $1`, id)
}

func (r *visitorPassRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	return r.get(ctx, `SELECT `+passColumns+` FROM visitor_passes WHERE id = $1 FOR UPDATE`, id)
}

func (r *visitorPassRepository) GetByPassNumber(ctx context.Context, passNumber string) (*domain.VisitorPass, error) {
	return r.get(ctx, `SELECT `+passColumns+` FROM visitor_passes WHERE pass_number = $1`, passNumber)
}

func (r *visitorPassRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.VisitorPass, error) {
	if externalID == "" {
		return nil, domain.ErrPassNotFound
	}
	return r.get(ctx, `SELECT `+passColumns+` FROM visitor_passes WHERE external_id = $1 LIMIT 1`, externalID)
}

func (r *visitorPassRepository) get(ctx context.Context, query string, arg any) (*domain.VisitorPass, error) {
	pass, err := scanPass(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPassNotFound
		}
		return nil, err
	}
	return pass, nil
}

func (r *visitorPassRepository) Update(ctx context.Context, pass *domain.VisitorPass) error {
	query := `
		UPDATE visitor_passes
		SET external_id = $2, status = $3, display_code = $4, origin_location = $5,
		    origin_station_id = $6, updated_at = $7
		WHERE id = $1
	`

	pass.UpdatedAt = time.Now()

	result, err := r.db.Exec(ctx, query,
		pass.ID,
		pass.ExternalID,
		pass.Status,
		pass.DisplayCode,
		pass.OriginLocation,
		pass.OriginStationID,
		pass.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrPassNotFound
	}

	return nil
}

func (r *visitorPassRepository) List(ctx context.Context, status *domain.PassStatus) ([]*domain.VisitorPass, error) {
	query := `
		SELECT ` + passColumns + `
		FROM visitor_passes
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY pass_number
	`

	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}

	rows, err := r.db.Query(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []*domain.VisitorPass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}

	return passes, rows.Err()
}

func scanPass(row pgx.Row) (*domain.VisitorPass, error) {
	pass := &domain.VisitorPass{}
	err := row.Scan(
		&pass.ID,
		&pass.PassNumber,
		&pass.ExternalID,
		&pass.Status,
		&pass.DisplayCode,
		&pass.OriginLocation,
		&pass.OriginStationID,
		&pass.CreatedAt,
		&pass.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pass, nil
}
