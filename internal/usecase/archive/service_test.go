package archive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/frontandrew/ivisit/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	store   *memory.Store
	clock   *clock.Fixed
	station domain.Station
	guardID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clk := clock.NewFixed(testNow)

	f := &fixture{
		svc:     NewService(store, 1, clk, nil, logger.NewNoop()),
		store:   store,
		clock:   clk,
		station: domain.Station{ID: uuid.New(), Name: "Gate", Type: domain.StationTypeGate, Active: true},
	}
	store.AddStation(f.station)
	guard := domain.GuardAccount{ID: uuid.New(), Username: "guard", Role: domain.RoleGuard, Active: true}
	store.AddAccount(guard)
	f.guardID = guard.ID
	return f
}

func (f *fixture) visitor(t *testing.T, createdAgo time.Duration) *domain.Visitor {
	t.Helper()
	v := &domain.Visitor{Name: "Visitor", CreatedAt: testNow.Add(-createdAgo)}
	require.NoError(t, f.store.Visitors().Create(context.Background(), v))
	return v
}

// visit создает визит; ended == 0 - визит открыт
func (f *fixture) visit(t *testing.T, v *domain.Visitor, started, ended time.Duration) *domain.VisitorLog {
	t.Helper()
	ctx := context.Background()
	l := &domain.VisitorLog{VisitorID: v.ID, ActiveStart: testNow.Add(-started), Status: domain.LogStatusActive}
	if ended > 0 {
		end := testNow.Add(-ended)
		l.ActiveEnd = &end
		l.Status = domain.LogStatusEnded
	}
	require.NoError(t, f.store.Logs().Create(ctx, l))
	require.NoError(t, f.store.Entries().Create(ctx, &domain.VisitorLogEntry{
		LogID:          l.ID,
		StationID:      f.station.ID,
		GuardAccountID: f.guardID,
		Timestamp:      l.ActiveStart,
	}))
	return l
}

const day = 24 * time.Hour

func TestService_Cutoff(t *testing.T) {
	svc := NewService(memory.New(), 1, clock.Real(), nil, logger.NewNoop())
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), svc.Cutoff(testNow))

	leap := time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), svc.Cutoff(leap))
}

func TestService_Run_ArchivesInactiveVisitor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.visitor(t, 500*day)
	oldLog := f.visit(t, old, 400*day+2*time.Hour, 400*day)

	// открытый визит блокирует архивацию независимо от возраста
	stuck := f.visitor(t, 500*day)
	stuckLog := f.visit(t, stuck, 450*day, 0)

	recent := f.visitor(t, 500*day)
	f.visit(t, recent, 10*day, 10*day-time.Hour)

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, int64(1), report.Visitors)
	assert.Equal(t, int64(1), report.Logs)
	assert.Equal(t, int64(1), report.Entries)
	assert.Equal(t, 2, report.Skipped)

	archivedVisitor, err := f.store.Visitors().GetByID(ctx, old.ID)
	require.NoError(t, err)
	require.True(t, archivedVisitor.Archived)
	require.NotNil(t, archivedVisitor.ArchivedAt)
	assert.Equal(t, testNow, *archivedVisitor.ArchivedAt)

	archivedLog, err := f.store.Logs().GetByID(ctx, oldLog.ID)
	require.NoError(t, err)
	require.True(t, archivedLog.Archived)
	assert.Equal(t, *archivedVisitor.ArchivedAt, *archivedLog.ArchivedAt)

	entries, err := f.store.Entries().ListArchived(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, oldLog.ID, entries[0].LogID)
	assert.Equal(t, *archivedVisitor.ArchivedAt, *entries[0].ArchivedAt)

	untouched, err := f.store.Logs().GetByID(ctx, stuckLog.ID)
	require.NoError(t, err)
	assert.False(t, untouched.Archived)
	stuckVisitor, err := f.store.Visitors().GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.False(t, stuckVisitor.Archived)
}

func TestService_Run_IsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.visitor(t, 500*day)
	l := f.visit(t, v, 400*day, 399*day)

	_, err := f.svc.Run(ctx)
	require.NoError(t, err)

	f.clock.Advance(day)
	report, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Zero(t, report.Visitors)

	stored, err := f.store.Logs().GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow, *stored.ArchivedAt)
}

func TestService_Run_LastActivity(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture) *domain.Visitor
		archived bool
	}{
		{
			name: "посетитель без визитов",
			setup: func(t *testing.T, f *fixture) *domain.Visitor {
				return f.visitor(t, 400*day)
			},
			archived: true,
		},
		{
			name: "недавно зарегистрирован",
			setup: func(t *testing.T, f *fixture) *domain.Visitor {
				return f.visitor(t, 30*day)
			},
		},
		{
			name: "давнее начало, но недавнее окончание",
			setup: func(t *testing.T, f *fixture) *domain.Visitor {
				v := f.visitor(t, 500*day)
				f.visit(t, v, 400*day, 100*day)
				return v
			},
		},
		{
			name: "последняя активность ровно на границе",
			setup: func(t *testing.T, f *fixture) *domain.Visitor {
				v := f.visitor(t, 500*day)
				cutoff := f.svc.Cutoff(testNow)
				f.visit(t, v, testNow.Sub(cutoff)+time.Hour, testNow.Sub(cutoff))
				return v
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			v := tt.setup(t, f)

			_, err := f.svc.Run(ctx)
			require.NoError(t, err)

			stored, err := f.store.Visitors().GetByID(ctx, v.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.archived, stored.Archived)
		})
	}
}

func TestService_Evaluate_UnknownActivity(t *testing.T) {
	f := newFixture(t)

	_, eligible, err := f.svc.evaluate(context.Background(), f.store, &domain.Visitor{ID: uuid.New()}, f.svc.Cutoff(testNow))
	require.NoError(t, err)
	assert.False(t, eligible)
}

// lateActivityStore вносит активность посетителя между отбором кандидатов
// и транзакцией архивации
type lateActivityStore struct {
	*memory.Store
	once   sync.Once
	before func()
}

func (s *lateActivityStore) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.once.Do(s.before)
	return s.Store.RunInTx(ctx, fn)
}

func TestService_Run_RechecksActivityInsideTx(t *testing.T) {
	tests := []struct {
		name  string
		ended time.Duration
	}{
		{name: "новый завершенный визит", ended: time.Hour},
		{name: "новый открытый визит", ended: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			v := f.visitor(t, 500*day)
			oldLog := f.visit(t, v, 400*day+time.Hour, 400*day)

			var lateLog *domain.VisitorLog
			store := &lateActivityStore{Store: f.store}
			store.before = func() {
				lateLog = f.visit(t, v, 2*time.Hour, tt.ended)
			}
			svc := NewService(store, 1, f.clock, nil, logger.NewNoop())

			report, err := svc.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Scanned)
			assert.Equal(t, 1, report.Skipped)
			assert.Zero(t, report.Visitors)
			assert.Zero(t, report.Logs)
			assert.Zero(t, report.Entries)

			stored, err := f.store.Visitors().GetByID(ctx, v.ID)
			require.NoError(t, err)
			assert.False(t, stored.Archived)

			for _, id := range []uuid.UUID{oldLog.ID, lateLog.ID} {
				l, err := f.store.Logs().GetByID(ctx, id)
				require.NoError(t, err)
				assert.False(t, l.Archived)
			}

			archived, err := f.store.Entries().ListArchived(ctx)
			require.NoError(t, err)
			assert.Empty(t, archived)
		})
	}
}
