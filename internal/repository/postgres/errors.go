package postgres

import (
	"errors"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Имена ограничений из migrations/
var constraintErrors = map[string]error{
	"visitor_passes_pass_number_key":          domain.ErrPassAlreadyExists,
	"visitor_logs_one_open_per_visitor":       domain.ErrVisitorHasActiveLog,
	"visitor_logs_one_open_per_pass":          domain.ErrPassAlreadyInUse,
	"visitor_log_entries_station_id_fkey":     domain.ErrStationNotFound,
	"visitor_log_entries_guard_account_fkey":  domain.ErrGuardNotFound,
	"visitor_pass_incidents_pass_id_fkey":     domain.ErrPassNotFound,
	"visitor_log_allowed_stations_station_fk": domain.ErrStationNotFound,
}

// mapError переводит нарушения ограничений в доменные ошибки
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code != codeUniqueViolation && pgErr.Code != codeForeignKeyViolation {
		return err
	}
	if mapped, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return mapped
	}
	return err
}
