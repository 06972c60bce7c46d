// Package memory - хранилище в памяти для тестов и локальной разработки.
// Транзакции сериализуются одним мьютексом и фиксируются копированием состояния:
// изменения fn применяются к клону и публикуются только при успешном завершении.
package memory

import (
	"context"
	"sync"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	visitors  map[uuid.UUID]domain.Visitor
	passes    map[uuid.UUID]domain.VisitorPass
	logs      map[uuid.UUID]domain.VisitorLog
	entries   []domain.VisitorLogEntry // порядок добавления
	incidents []domain.VisitorPassIncident
	stations  map[uuid.UUID]domain.Station
	accounts  map[uuid.UUID]domain.GuardAccount
}

func newState() *state {
	return &state{
		visitors: make(map[uuid.UUID]domain.Visitor),
		passes:   make(map[uuid.UUID]domain.VisitorPass),
		logs:     make(map[uuid.UUID]domain.VisitorLog),
		stations: make(map[uuid.UUID]domain.Station),
		accounts: make(map[uuid.UUID]domain.GuardAccount),
	}
}

func (s *state) clone() *state {
	c := &state{
		visitors:  make(map[uuid.UUID]domain.Visitor, len(s.visitors)),
		passes:    make(map[uuid.UUID]domain.VisitorPass, len(s.passes)),
		logs:      make(map[uuid.UUID]domain.VisitorLog, len(s.logs)),
		entries:   make([]domain.VisitorLogEntry, len(s.entries)),
		incidents: make([]domain.VisitorPassIncident, len(s.incidents)),
		stations:  make(map[uuid.UUID]domain.Station, len(s.stations)),
		accounts:  make(map[uuid.UUID]domain.GuardAccount, len(s.accounts)),
	}
	for k, v := range s.visitors {
		c.visitors[k] = v
	}
	for k, v := range s.passes {
		c.passes[k] = v
	}
	for k, v := range s.logs {
		c.logs[k] = copyLog(v)
	}
	copy(c.entries, s.entries)
	copy(c.incidents, s.incidents)
	for k, v := range s.stations {
		c.stations[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	return c
}

func copyLog(l domain.VisitorLog) domain.VisitorLog {
	if l.AllowedStationIDs != nil {
		l.AllowedStationIDs = append([]uuid.UUID(nil), l.AllowedStationIDs...)
	}
	l.Entries = nil
	return l
}

// Store - реализация repository.Store в памяти
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ repository.Store = (*Store)(nil)

// New создает пустое хранилище
func New() *Store {
	return &Store{state: newState()}
}

// RunInTx выполняет fn над копией состояния и публикует ее, если fn вернула nil
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&view{st: func() *state { return work }, lock: noLock}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AddStation добавляет пост в справочник (справочник ведется вне ядра)
func (s *Store) AddStation(station domain.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if station.ID == uuid.Nil {
		station.ID = uuid.New()
	}
	s.state.stations[station.ID] = station
}

// AddAccount добавляет учетную запись охраны в справочник
func (s *Store) AddAccount(account domain.GuardAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	s.state.accounts[account.ID] = account
}

func (s *Store) direct() *view {
	return &view{
		st: func() *state { return s.state },
		lock: func() func() {
			s.mu.Lock()
			return s.mu.Unlock
		},
	}
}

func (s *Store) Visitors() repository.VisitorRepository        { return visitorRepo{s.direct()} }
func (s *Store) Passes() repository.VisitorPassRepository      { return passRepo{s.direct()} }
func (s *Store) Logs() repository.VisitorLogRepository         { return logRepo{s.direct()} }
func (s *Store) Entries() repository.VisitorLogEntryRepository { return entryRepo{s.direct()} }
func (s *Store) Incidents() repository.IncidentRepository      { return incidentRepo{s.direct()} }
func (s *Store) Stations() repository.StationRepository        { return stationRepo{s.direct()} }
func (s *Store) Accounts() repository.GuardAccountRepository   { return accountRepo{s.direct()} }

// view привязывает репозитории к состоянию: внутри транзакции - к клону без
// дополнительной блокировки, вне транзакции - к текущему состоянию под мьютексом
type view struct {
	st   func() *state
	lock func() func()
}

func noLock() func() { return func() {} }

func (v *view) Visitors() repository.VisitorRepository        { return visitorRepo{v} }
func (v *view) Passes() repository.VisitorPassRepository      { return passRepo{v} }
func (v *view) Logs() repository.VisitorLogRepository         { return logRepo{v} }
func (v *view) Entries() repository.VisitorLogEntryRepository { return entryRepo{v} }
func (v *view) Incidents() repository.IncidentRepository      { return incidentRepo{v} }
func (v *view) Stations() repository.StationRepository        { return stationRepo{v} }
func (v *view) Accounts() repository.GuardAccountRepository   { return accountRepo{v} }

type stationRepo struct{ v *view }

func (r stationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Station, error) {
	defer r.v.lock()()
	station, ok := r.v.st().stations[id]
	if !ok {
		return nil, domain.ErrStationNotFound
	}
	return &station, nil
}

type accountRepo struct{ v *view }

func (r accountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.GuardAccount, error) {
	defer r.v.lock()()
	account, ok := r.v.st().accounts[id]
	if !ok {
		return nil, domain.ErrGuardNotFound
	}
	return &account, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
