package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type visitorLogEntryRepository struct {
	db querier
}

const entryColumns = `id, log_id, station_id, guard_account_id, timestamp,
	       recorded_pass_display_code, recorded_pass_origin, archived, archived_at`

func (r *visitorLogEntryRepository) Create(ctx context.Context, entry *domain.VisitorLogEntry) error {
	query := `
		INSERT INTO visitor_log_entries (id, log_id, station_id, guard_account_id, timestamp,
		                                 recorded_pass_display_code, recorded_pass_origin, archived, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.LogID,
		entry.StationID,
		entry.GuardAccountID,
		entry.Timestamp,
		entry.RecordedPassDisplayCode,
		entry.RecordedPassOrigin,
		entry.Archived,
		entry.ArchivedAt,
	)

	return mapError(err)
}

func (r *visitorLogEntryRepository) GetLatestByLog(ctx context.Context, logID uuid.UUID) (*domain.VisitorLogEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM visitor_log_entries
		WHERE log_id = $1
		ORDER BY timestamp DESC, seq DESC
		LIMIT 1
	`

	entry, err := scanEntry(r.db.QueryRow(ctx, query, logID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func (r *visitorLogEntryRepository) ListByLog(ctx context.Context, logID uuid.UUID) ([]*domain.VisitorLogEntry, error) {
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM visitor_log_entries
		WHERE log_id = $1
		ORDER BY seq
	`, logID)
}

func (r *visitorLogEntryRepository) ListByLogs(ctx context.Context, logIDs []uuid.UUID) ([]*domain.VisitorLogEntry, error) {
	if len(logIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM visitor_log_entries
		WHERE log_id = ANY($1::uuid[])
		ORDER BY seq
	`, uuidStrings(logIDs))
}

func (r *visitorLogEntryRepository) ListRecent(ctx context.Context, limit int) ([]*domain.VisitorLogEntry, error) {
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM visitor_log_entries
		ORDER BY timestamp DESC, seq DESC
		LIMIT $1
	`, limit)
}

func (r *visitorLogEntryRepository) ListArchived(ctx context.Context) ([]*domain.VisitorLogEntry, error) {
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM visitor_log_entries
		WHERE archived = TRUE
		ORDER BY seq
	`)
}

func (r *visitorLogEntryRepository) MarkArchivedByLogs(ctx context.Context, logIDs []uuid.UUID, at time.Time) (int64, error) {
	if len(logIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE visitor_log_entries
		SET archived = TRUE, archived_at = $2
		WHERE log_id = ANY($1::uuid[]) AND archived = FALSE
	`

	result, err := r.db.Exec(ctx, query, uuidStrings(logIDs), at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *visitorLogEntryRepository) list(ctx context.Context, query string, args ...any) ([]*domain.VisitorLogEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.VisitorLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.VisitorLogEntry, error) {
	entry := &domain.VisitorLogEntry{}
	err := row.Scan(
		&entry.ID,
		&entry.LogID,
		&entry.StationID,
		&entry.GuardAccountID,
		&entry.Timestamp,
		&entry.RecordedPassDisplayCode,
		&entry.RecordedPassOrigin,
		&entry.Archived,
		&entry.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}
