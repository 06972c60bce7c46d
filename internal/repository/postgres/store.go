package postgres

import (
	"context"
	"fmt"

	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier - общее подмножество pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store - хранилище на PostgreSQL
type Store struct {
	pool *pgxpool.Pool
	repos
}

var _ repository.Store = (*Store)(nil)

// NewStore создает хранилище поверх пула подключений
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, repos: repos{db: pool}}
}

// RunInTx выполняет fn в транзакции READ COMMITTED
// Гонки между параллельными операциями закрываются SELECT ... FOR UPDATE
// на строках посетителя, пропуска и визита, плюс частичные уникальные индексы
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// после Commit откат возвращает pgx.ErrTxClosed и ничего не делает
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(repos{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// repos реализует repository.Tx поверх произвольного querier
type repos struct {
	db querier
}

func (r repos) Visitors() repository.VisitorRepository        { return &visitorRepository{db: r.db} }
func (r repos) Passes() repository.VisitorPassRepository      { return &visitorPassRepository{db: r.db} }
func (r repos) Logs() repository.VisitorLogRepository         { return &visitorLogRepository{db: r.db} }
func (r repos) Entries() repository.VisitorLogEntryRepository { return &visitorLogEntryRepository{db: r.db} }
func (r repos) Incidents() repository.IncidentRepository      { return &incidentRepository{db: r.db} }
func (r repos) Stations() repository.StationRepository        { return &stationRepository{db: r.db} }
func (r repos) Accounts() repository.GuardAccountRepository   { return &guardAccountRepository{db: r.db} }
