package overstay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/frontandrew/ivisit/internal/repository/memory"
	"github.com/frontandrew/ivisit/internal/usecase/incident"
	"github.com/frontandrew/ivisit/internal/usecase/pass"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	clock   *clock.Fixed
	passes  *pass.Service
	station domain.Station
	guardID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clk := clock.NewFixed(testNow)

	f := &fixture{
		store:   store,
		clock:   clk,
		passes:  pass.NewService(store, nil, clk, logger.NewNoop()),
		station: domain.Station{ID: uuid.New(), Name: "Gate", Type: domain.StationTypeGate, Active: true},
	}
	store.AddStation(f.station)
	guard := domain.GuardAccount{ID: uuid.New(), Username: "guard", Role: domain.RoleGuard, Active: true}
	store.AddAccount(guard)
	f.guardID = guard.ID
	return f
}

func (f *fixture) service(incidents IncidentCreator) *Service {
	if incidents == nil {
		incidents = incident.NewService(f.store, f.passes, f.clock, nil, logger.NewNoop())
	}
	return NewService(f.store, f.passes, incidents, domain.DefaultOverstayPolicy(), f.clock, nil, logger.NewNoop())
}

// openLog создает открытый визит с выданным пропуском и первой отметкой firstEntry назад
func (f *fixture) openLog(t *testing.T, status domain.LogStatus, started, firstEntry time.Duration) (*domain.VisitorLog, *domain.VisitorPass) {
	t.Helper()
	ctx := context.Background()

	visitor := &domain.Visitor{Name: "Visitor", CreatedAt: testNow.Add(-48 * time.Hour)}
	require.NoError(t, f.store.Visitors().Create(ctx, visitor))

	p := &domain.VisitorPass{PassNumber: uuid.NewString()[:8], DisplayCode: "V-13", Status: domain.PassStatusInUse}
	require.NoError(t, f.store.Passes().Create(ctx, p))

	log := &domain.VisitorLog{
		VisitorID:   visitor.ID,
		PassID:      &p.ID,
		ActiveStart: testNow.Add(-started),
		Status:      status,
	}
	require.NoError(t, f.store.Logs().Create(ctx, log))

	if firstEntry > 0 {
		require.NoError(t, f.store.Entries().Create(ctx, &domain.VisitorLogEntry{
			LogID:          log.ID,
			StationID:      f.station.ID,
			GuardAccountID: f.guardID,
			Timestamp:      testNow.Add(-firstEntry),
		}))
	}
	return log, p
}

func (f *fixture) reload(t *testing.T, log *domain.VisitorLog, p *domain.VisitorPass) (*domain.VisitorLog, *domain.VisitorPass) {
	t.Helper()
	ctx := context.Background()
	l, err := f.store.Logs().GetByID(ctx, log.ID)
	require.NoError(t, err)
	stored, err := f.store.Passes().GetByID(ctx, p.ID)
	require.NoError(t, err)
	return l, stored
}

func TestService_Evaluate_SoftOverstay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log, p := f.openLog(t, domain.LogStatusActive, 9*time.Hour, 9*time.Hour)

	report, err := f.service(nil).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1, Flagged: 1}, report)

	l, stored := f.reload(t, log, p)
	assert.Equal(t, domain.LogStatusActiveOverstay, l.Status)
	assert.Nil(t, l.ActiveEnd)
	assert.Equal(t, domain.PassStatusInUse, stored.Status)

	incidents, err := f.store.Incidents().List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, incidents)

	// повторный прогон ничего не меняет
	report, err = f.service(nil).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1}, report)
}

func TestService_Evaluate_HardOverstay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log, p := f.openLog(t, domain.LogStatusActiveOverstay, 13*time.Hour, 13*time.Hour)

	report, err := f.service(nil).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1, Locked: 1}, report)

	l, stored := f.reload(t, log, p)
	assert.Equal(t, domain.LogStatusLockedOverstay, l.Status)
	require.NotNil(t, l.ActiveEnd)
	assert.Equal(t, testNow, *l.ActiveEnd)
	assert.Equal(t, domain.PassStatusOverstayLocked, stored.Status)

	incidents, err := f.store.Incidents().List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, domain.IncidentTypeOverstay, incidents[0].IncidentType)
	assert.Equal(t, domain.IncidentStatusOpen, incidents[0].Status)
	assert.Equal(t, p.ID, incidents[0].PassID)
	require.NotNil(t, incidents[0].LogID)
	assert.Equal(t, log.ID, *incidents[0].LogID)
	assert.Equal(t, "Visit exceeded 12 hours and was auto-locked.", incidents[0].Description)

	// закрытый визит больше не попадает в выборку
	report, err = f.service(nil).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{}, report)
}

func TestService_Evaluate_ReferenceIsEarliestEntry(t *testing.T) {
	tests := []struct {
		name       string
		started    time.Duration
		firstEntry time.Duration
		expected   domain.LogStatus
	}{
		{name: "отметка позже начала визита", started: 13 * time.Hour, firstEntry: 2 * time.Hour, expected: domain.LogStatusActive},
		{name: "без отметок считается от начала", started: 8*time.Hour + 30*time.Minute, expected: domain.LogStatusActiveOverstay},
		{name: "только полные часы", started: 7*time.Hour + 59*time.Minute, expected: domain.LogStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			log, p := f.openLog(t, domain.LogStatusActive, tt.started, tt.firstEntry)

			_, err := f.service(nil).Evaluate(context.Background())
			require.NoError(t, err)

			l, _ := f.reload(t, log, p)
			assert.Equal(t, tt.expected, l.Status)
		})
	}
}

func TestService_Evaluate_NeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// ACTIVE_OVERSTAY при прошедших 2 часах (например, после правки данных) не откатывается в ACTIVE
	log, p := f.openLog(t, domain.LogStatusActiveOverstay, 2*time.Hour, 0)

	report, err := f.service(nil).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1}, report)

	l, _ := f.reload(t, log, p)
	assert.Equal(t, domain.LogStatusActiveOverstay, l.Status)
}

type mockIncidentCreator struct {
	mock.Mock
}

func (m *mockIncidentCreator) CreateInTx(ctx context.Context, tx repository.Tx, req *incident.CreateIncidentRequest) (*domain.VisitorPassIncident, error) {
	args := m.Called(ctx, tx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VisitorPassIncident), args.Error(1)
}

func TestService_Evaluate_FailureIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken, brokenPass := f.openLog(t, domain.LogStatusActive, 14*time.Hour, 0)
	healthy, healthyPass := f.openLog(t, domain.LogStatusActive, 13*time.Hour, 0)

	incidents := new(mockIncidentCreator)
	incidents.On("CreateInTx", mock.Anything, mock.Anything, mock.MatchedBy(func(req *incident.CreateIncidentRequest) bool {
		return *req.PassID == brokenPass.ID
	})).Return(nil, errors.New("incident store unavailable"))
	incidents.On("CreateInTx", mock.Anything, mock.Anything, mock.MatchedBy(func(req *incident.CreateIncidentRequest) bool {
		return *req.PassID == healthyPass.ID
	})).Return(&domain.VisitorPassIncident{ID: uuid.New()}, nil)

	report, err := f.service(incidents).Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 2, Locked: 1, Failed: 1}, report)

	// транзакция сломанного визита откатилась целиком
	l, stored := f.reload(t, broken, brokenPass)
	assert.Equal(t, domain.LogStatusActive, l.Status)
	assert.Nil(t, l.ActiveEnd)
	assert.Equal(t, domain.PassStatusInUse, stored.Status)

	l, stored = f.reload(t, healthy, healthyPass)
	assert.Equal(t, domain.LogStatusLockedOverstay, l.Status)
	assert.Equal(t, domain.PassStatusOverstayLocked, stored.Status)

	incidents.AssertExpectations(t)
}
