package postgres

import (
	"context"
	"errors"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Справочники постов и учетных записей ведутся вне ядра, здесь только чтение

type stationRepository struct {
	db querier
}

func (r *stationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Station, error) {
	query := `SELECT id, name, type, active FROM stations WHERE id = $1`

	station := &domain.Station{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&station.ID,
		&station.Name,
		&station.Type,
		&station.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStationNotFound
		}
		return nil, err
	}

	return station, nil
}

type guardAccountRepository struct {
	db querier
}

func (r *guardAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.GuardAccount, error) {
	query := `SELECT id, username, display_name, role, active FROM guard_accounts WHERE id = $1`

	account := &domain.GuardAccount{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Username,
		&account.DisplayName,
		&account.Role,
		&account.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGuardNotFound
		}
		return nil, err
	}

	return account, nil
}
