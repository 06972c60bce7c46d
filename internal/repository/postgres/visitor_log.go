package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type visitorLogRepository struct {
	db querier
}

const logColumns = `id, visitor_id, pass_id, active_start, active_end, status, purpose_of_visit, archived, archived_at`

func (r *visitorLogRepository) Create(ctx context.Context, log *domain.VisitorLog) error {
	query := `
		INSERT INTO visitor_logs (id, visitor_id, pass_id, active_start, active_end, status,
		                          purpose_of_visit, archived, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, query,
		log.ID,
		log.VisitorID,
		log.PassID,
		log.ActiveStart,
		log.ActiveEnd,
		log.Status,
		log.PurposeOfVisit,
		log.Archived,
		log.ArchivedAt,
	)
	if err != nil {
		return mapError(err)
	}

	for _, stationID := range log.AllowedStationIDs {
		_, err := r.db.Exec(ctx, `
			INSERT INTO visitor_log_allowed_stations (log_id, station_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, log.ID, stationID)
		if err != nil {
			return mapError(err)
		}
	}

	return nil
}

func (r *visitorLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.VisitorLog, error) {
	return r.get(ctx, `SELECT `+logColumns+` FROM visitor_logs WHERE id = $1`, id)
}

func (r *visitorLogRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorLog, error) {
	return r.get(ctx, `SELECT `+logColumns+` FROM visitor_logs WHERE id = $1 FOR UPDATE`, id)
}

func (r *visitorLogRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.VisitorLog, error) {
	log, err := scanLog(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLogNotFound
		}
		return nil, err
	}

	if err := r.loadAllowedStations(ctx, []*domain.VisitorLog{log}); err != nil {
		return nil, err
	}
	return log, nil
}

// Update сохраняет изменяемые поля; список разрешенных постов фиксируется при создании
func (r *visitorLogRepository) Update(ctx context.Context, log *domain.VisitorLog) error {
	query := `
		UPDATE visitor_logs
		SET pass_id = $2, active_end = $3, status = $4, purpose_of_visit = $5,
		    archived = $6, archived_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		log.ID,
		log.PassID,
		log.ActiveEnd,
		log.Status,
		log.PurposeOfVisit,
		log.Archived,
		log.ArchivedAt,
	)
	if err != nil {
		return mapError(err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrLogNotFound
	}

	return nil
}

func (r *visitorLogRepository) ListOpen(ctx context.Context) ([]*domain.VisitorLog, error) {
	return r.list(ctx, `
		SELECT `+logColumns+`
		FROM visitor_logs
		WHERE active_end IS NULL
		ORDER BY active_start
	`)
}

func (r *visitorLogRepository) ListOpenByVisitor(ctx context.Context, visitorID uuid.UUID) ([]*domain.VisitorLog, error) {
	return r.list(ctx, `
		SELECT `+logColumns+`
		FROM visitor_logs
		WHERE visitor_id = $1 AND active_end IS NULL
		ORDER BY active_start
	`, visitorID)
}

func (r *visitorLogRepository) ListNotArchivedByVisitor(ctx context.Context, visitorID uuid.UUID) ([]*domain.VisitorLog, error) {
	return r.list(ctx, `
		SELECT `+logColumns+`
		FROM visitor_logs
		WHERE visitor_id = $1 AND archived = FALSE
		ORDER BY active_start
	`, visitorID)
}

func (r *visitorLogRepository) List(ctx context.Context) ([]*domain.VisitorLog, error) {
	return r.list(ctx, `SELECT `+logColumns+` FROM visitor_logs ORDER BY active_start DESC`)
}

func (r *visitorLogRepository) ListArchived(ctx context.Context) ([]*domain.VisitorLog, error) {
	return r.list(ctx, `
		SELECT `+logColumns+`
		FROM visitor_logs
		WHERE archived = TRUE
		ORDER BY active_start DESC
	`)
}

func (r *visitorLogRepository) MarkArchived(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE visitor_logs
		SET archived = TRUE, archived_at = $2
		WHERE id = ANY($1::uuid[]) AND archived = FALSE
	`

	result, err := r.db.Exec(ctx, query, uuidStrings(ids), at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *visitorLogRepository) list(ctx context.Context, query string, args ...any) ([]*domain.VisitorLog, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var logs []*domain.VisitorLog
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		logs = append(logs, log)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// соединение должно освободиться до следующего запроса в той же транзакции
	if err := r.loadAllowedStations(ctx, logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// loadAllowedStations заполняет AllowedStationIDs одним запросом на пачку визитов
func (r *visitorLogRepository) loadAllowedStations(ctx context.Context, logs []*domain.VisitorLog) error {
	if len(logs) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.VisitorLog, len(logs))
	ids := make([]uuid.UUID, 0, len(logs))
	for _, log := range logs {
		byID[log.ID] = log
		ids = append(ids, log.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT log_id, station_id
		FROM visitor_log_allowed_stations
		WHERE log_id = ANY($1::uuid[])
		ORDER BY station_id
	`, uuidStrings(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var logID, stationID uuid.UUID
		if err := rows.Scan(&logID, &stationID); err != nil {
			return err
		}
		if log, ok := byID[logID]; ok {
			log.AllowedStationIDs = append(log.AllowedStationIDs, stationID)
		}
	}

	return rows.Err()
}

func scanLog(row pgx.Row) (*domain.VisitorLog, error) {
	log := &domain.VisitorLog{}
	err := row.Scan(
		&log.ID,
		&log.VisitorID,
		&log.PassID,
		&log.ActiveStart,
		&log.ActiveEnd,
		&log.Status,
		&log.PurposeOfVisit,
		&log.Archived,
		&log.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	return log, nil
}
