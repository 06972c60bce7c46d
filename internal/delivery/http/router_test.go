package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/config"
	"github.com/frontandrew/ivisit/internal/pkg/jwt"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// countingFailures - счетчик неудачных попыток в памяти
type countingFailures struct {
	mu    sync.Mutex
	limit int64
	fails map[string]int64
}

func (c *countingFailures) Blocked(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fails[id] >= c.limit, nil
}

func (c *countingFailures) Fail(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fails[id]++
	return c.fails[id], nil
}

func (c *countingFailures) Reset(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fails, id)
	return nil
}

type routerFixture struct {
	handler  http.Handler
	tokens   *jwt.TokenService
	sessions *MockSessionService
	passes   *MockPassService
	failures *countingFailures
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tokens := jwt.NewTokenService("test-secret", "ivisit-test", time.Hour)

	f := &routerFixture{
		tokens:   tokens,
		sessions: new(MockSessionService),
		passes:   new(MockPassService),
		failures: &countingFailures{limit: 3, fails: make(map[string]int64)},
	}

	log := logger.NewNoop()
	jobs := new(MockJobRunner)
	handlers := Handlers{
		Session:  NewSessionHandler(f.sessions, new(MockEntryService), log),
		Entry:    NewEntryHandler(new(MockEntryService), 50, log),
		Pass:     NewPassHandler(f.passes, log),
		Incident: NewIncidentHandler(new(MockIncidentService), log),
		Job:      NewJobHandler(jobs, jobs, log),
	}
	cfg := &config.Config{
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Authorization"},
		},
	}

	f.handler = NewRouter(handlers, tokens, f.failures, m, reg, cfg, log).Setup()
	return f
}

func (f *routerFixture) token(t *testing.T, role domain.GuardRole) string {
	t.Helper()
	token, _, err := f.tokens.GenerateToken(&domain.GuardAccount{
		ID:       uuid.New(),
		Username: "guard-" + string(role),
		Role:     role,
		Active:   true,
	})
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_Public(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ivisit_http_requests_total")
}

func TestRouter_Auth(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		role           domain.GuardRole
		header         string
		expectedStatus int
	}{
		{
			name:           "без токена",
			method:         http.MethodGet,
			path:           "/api/v1/sessions/active",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "неверный формат заголовка",
			method:         http.MethodGet,
			path:           "/api/v1/sessions/active",
			header:         "Token abc",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "поддельный токен",
			method:         http.MethodGet,
			path:           "/api/v1/sessions/active",
			header:         "Bearer not.a.jwt",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "охранник видит активные визиты",
			method:         http.MethodGet,
			path:           "/api/v1/sessions/active",
			role:           domain.RoleGuard,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "охраннику запрещено создавать пропуска",
			method:         http.MethodPost,
			path:           "/api/v1/passes",
			role:           domain.RoleGuard,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "охраннику запрещены админские задачи",
			method:         http.MethodPost,
			path:           "/api/v1/admin/jobs/overstay/run",
			role:           domain.RoleGuard,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "неизвестная роль",
			method:         http.MethodGet,
			path:           "/api/v1/sessions/active",
			role:           domain.GuardRole("visitor"),
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.sessions.On("ListActive", mock.Anything).Return([]*domain.VisitorLog{}, nil).Maybe()

			req := httptest.NewRequest(tt.method, tt.path, nil)
			switch {
			case tt.header != "":
				req.Header.Set("Authorization", tt.header)
			case tt.role != "":
				req.Header.Set("Authorization", "Bearer "+f.token(t, tt.role))
			}
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRouter_BlocksAfterFailedAttempts(t *testing.T) {
	f := newRouterFixture(t)
	f.sessions.On("ListActive", mock.Anything).Return([]*domain.VisitorLog{}, nil).Maybe()

	for i := 0; i < 3; i++ {
		w := f.do(http.MethodGet, "/api/v1/sessions/active", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// даже валидный токен не проходит, пока окно не истекло
	w := f.do(http.MethodGet, "/api/v1/sessions/active", f.token(t, domain.RoleGuard))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_SuccessResetsFailures(t *testing.T) {
	f := newRouterFixture(t)
	f.sessions.On("ListActive", mock.Anything).Return([]*domain.VisitorLog{}, nil)

	for i := 0; i < 2; i++ {
		f.do(http.MethodGet, "/api/v1/sessions/active", "")
	}
	w := f.do(http.MethodGet, "/api/v1/sessions/active", f.token(t, domain.RoleGuard))
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/sessions/active", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = f.do(http.MethodGet, "/api/v1/sessions/active", f.token(t, domain.RoleGuard))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminRouteRejectsEmptyBody(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/passes", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+f.token(t, domain.RoleAdmin))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	// пустое тело отклоняется до вызова сервиса
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.passes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
