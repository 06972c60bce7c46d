package postgres

import (
	"context"
	"errors"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type incidentRepository struct {
	db querier
}

const incidentColumns = `id, pass_id, visitor_id, log_id, station_id, reported_by_id, incident_type,
	       description, status, reported_at, resolved_at, resolution_notes`

func (r *incidentRepository) Create(ctx context.Context, incident *domain.VisitorPassIncident) error {
	query := `
		INSERT INTO visitor_pass_incidents (id, pass_id, visitor_id, log_id, station_id, reported_by_id,
		                                    incident_type, description, status, reported_at, resolved_at, resolution_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.PassID,
		incident.VisitorID,
		incident.LogID,
		incident.StationID,
		incident.ReportedByID,
		incident.IncidentType,
		incident.Description,
		incident.Status,
		incident.ReportedAt,
		incident.ResolvedAt,
		incident.ResolutionNotes,
	)

	return mapError(err)
}

func (r *incidentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorPassIncident, error) {
	query := `SELECT ` + incidentColumns + ` FROM visitor_pass_incidents WHERE id = $1 FOR UPDATE`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIncidentNotFound
		}
		return nil, err
	}
	return incident, nil
}

func (r *incidentRepository) Update(ctx context.Context, incident *domain.VisitorPassIncident) error {
	query := `
		UPDATE visitor_pass_incidents
		SET status = $2, resolved_at = $3, resolution_notes = $4, description = $5
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.Status,
		incident.ResolvedAt,
		incident.ResolutionNotes,
		incident.Description,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrIncidentNotFound
	}

	return nil
}

func (r *incidentRepository) List(ctx context.Context, status *domain.IncidentStatus) ([]*domain.VisitorPassIncident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM visitor_pass_incidents
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY reported_at DESC, seq DESC
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

	var incidents []*domain.VisitorPassIncident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}

	return incidents, rows.Err()
}

func scanIncident(row pgx.Row) (*domain.VisitorPassIncident, error) {
	incident := &domain.VisitorPassIncident{}
	err := row.Scan(
		&incident.ID,
		&incident.PassID,
		&incident.VisitorID,
		&incident.LogID,
		&incident.StationID,
		&incident.ReportedByID,
		&incident.IncidentType,
		&incident.Description,
		&incident.Status,
		&incident.ReportedAt,
		&incident.ResolvedAt,
		&incident.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}
	return incident, nil
}
