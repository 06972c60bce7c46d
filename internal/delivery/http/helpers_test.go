package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frontandrew/ivisit/internal/delivery/http/middleware"
	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/jwt"
	"github.com/frontandrew/ivisit/internal/usecase/archive"
	"github.com/frontandrew/ivisit/internal/usecase/entry"
	"github.com/frontandrew/ivisit/internal/usecase/incident"
	"github.com/frontandrew/ivisit/internal/usecase/overstay"
	"github.com/frontandrew/ivisit/internal/usecase/pass"
	"github.com/frontandrew/ivisit/internal/usecase/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSessionService - мок менеджера визитов
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) CheckIn(ctx context.Context, req *session.CheckInRequest) (*domain.VisitorLog, error) {
	args := m.Called(ctx, req)
	return logOrNil(args.Get(0)), args.Error(1)
}

func (m *MockSessionService) CheckOut(ctx context.Context, logID uuid.UUID, req *session.CheckOutRequest) (*domain.VisitorLog, error) {
	args := m.Called(ctx, logID, req)
	return logOrNil(args.Get(0)), args.Error(1)
}

func (m *MockSessionService) GrantPass(ctx context.Context, logID, passID uuid.UUID) (*domain.VisitorLog, error) {
	args := m.Called(ctx, logID, passID)
	return logOrNil(args.Get(0)), args.Error(1)
}

func (m *MockSessionService) RevokePass(ctx context.Context, logID uuid.UUID) (*domain.VisitorLog, error) {
	args := m.Called(ctx, logID)
	return logOrNil(args.Get(0)), args.Error(1)
}

func (m *MockSessionService) SoftCloseExtraneous(ctx context.Context, visitorID uuid.UUID) (int, error) {
	args := m.Called(ctx, visitorID)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionService) Get(ctx context.Context, logID uuid.UUID) (*domain.VisitorLog, error) {
	args := m.Called(ctx, logID)
	return logOrNil(args.Get(0)), args.Error(1)
}

func (m *MockSessionService) ListActive(ctx context.Context) ([]*domain.VisitorLog, error) {
	args := m.Called(ctx)
	return logsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockSessionService) ListAll(ctx context.Context) ([]*domain.VisitorLog, error) {
	args := m.Called(ctx)
	return logsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockSessionService) ListArchived(ctx context.Context) ([]*domain.VisitorLog, error) {
	args := m.Called(ctx)
	return logsOrNil(args.Get(0)), args.Error(1)
}

func logOrNil(v interface{}) *domain.VisitorLog {
	if v == nil {
		return nil
	}
	return v.(*domain.VisitorLog)
}

func logsOrNil(v interface{}) []*domain.VisitorLog {
	if v == nil {
		return nil
	}
	return v.([]*domain.VisitorLog)
}

// MockEntryService - мок записи отметок
type MockEntryService struct {
	mock.Mock
}

func (m *MockEntryService) Record(ctx context.Context, logID, stationID, guardID uuid.UUID) (*entry.RecordResult, error) {
	args := m.Called(ctx, logID, stationID, guardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.RecordResult), args.Error(1)
}

func (m *MockEntryService) ListRecent(ctx context.Context, limit int) ([]*domain.VisitorLogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VisitorLogEntry), args.Error(1)
}

func (m *MockEntryService) ListArchived(ctx context.Context) ([]*domain.VisitorLogEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VisitorLogEntry), args.Error(1)
}

// MockPassService - мок реестра пропусков
type MockPassService struct {
	mock.Mock
}

func (m *MockPassService) Create(ctx context.Context, req *pass.CreatePassRequest) (*domain.VisitorPass, error) {
	args := m.Called(ctx, req)
	return passOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPassService) Get(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	args := m.Called(ctx, id)
	return passOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPassService) List(ctx context.Context, rawStatus string) ([]*domain.VisitorPass, error) {
	args := m.Called(ctx, rawStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VisitorPass), args.Error(1)
}

func (m *MockPassService) ListAvailable(ctx context.Context) ([]*domain.VisitorPass, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VisitorPass), args.Error(1)
}

func (m *MockPassService) FindByUID(ctx context.Context, uid string) (*domain.VisitorPass, error) {
	args := m.Called(ctx, uid)
	return passOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPassService) UpdateMetadata(ctx context.Context, id uuid.UUID, req *pass.UpdateMetadataRequest) (*domain.VisitorPass, error) {
	args := m.Called(ctx, id, req)
	return passOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPassService) SetStatus(ctx context.Context, id uuid.UUID, rawStatus string) (*domain.VisitorPass, error) {
	args := m.Called(ctx, id, rawStatus)
	return passOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPassService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func passOrNil(v interface{}) *domain.VisitorPass {
	if v == nil {
		return nil
	}
	return v.(*domain.VisitorPass)
}

// MockIncidentService - мок журнала инцидентов
type MockIncidentService struct {
	mock.Mock
}

func (m *MockIncidentService) Create(ctx context.Context, req *incident.CreateIncidentRequest) (*domain.VisitorPassIncident, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VisitorPassIncident), args.Error(1)
}

func (m *MockIncidentService) Close(ctx context.Context, id uuid.UUID, req *incident.CloseIncidentRequest) (*domain.VisitorPassIncident, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VisitorPassIncident), args.Error(1)
}

func (m *MockIncidentService) List(ctx context.Context, rawStatus string) ([]*domain.VisitorPassIncident, error) {
	args := m.Called(ctx, rawStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VisitorPassIncident), args.Error(1)
}

// MockJobRunner - мок фоновых задач
type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) Evaluate(ctx context.Context) (*overstay.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*overstay.Report), args.Error(1)
}

func (m *MockJobRunner) Run(ctx context.Context) (*archive.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*archive.Report), args.Error(1)
}

// CreateAuthContext создает контекст с JWT claims для тестирования
func CreateAuthContext(accountID uuid.UUID, role domain.GuardRole) context.Context {
	return middleware.WithGuardClaims(context.Background(), &jwt.Claims{
		AccountID: accountID,
		Username:  "guard",
		Role:      role,
	})
}

// newRequest собирает запрос с телом, контекстом и параметрами пути chi
func newRequest(t *testing.T, ctx context.Context, method, target string, body interface{}, params map[string]string) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader).WithContext(ctx)
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

// decodeResponse разбирает ответ в map
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}
