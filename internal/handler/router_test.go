package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mock-interview/backend/internal/metrics"
	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/model/role"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
)

type nopBackend struct{}

func (nopBackend) StartSession(context.Context, interview.Intake) ([]string, error) {
	return nil, nil
}

func (nopBackend) Analyze(context.Context, interview.Aggregate) (interview.SummaryResult, error) {
	return interview.SummaryResult{}, nil
}

func newTestRouter(t *testing.T, withMetrics bool) http.Handler {
	t.Helper()
	m := session.NewManager(session.ManagerConfig{Backend: nopBackend{}})
	t.Cleanup(m.Close)

	deps := Deps{Roles: role.NewMemoryStore(role.Seed()), Sessions: m}
	if withMetrics {
		deps.Metrics = metrics.Handler(metrics.NewRegistry())
	}
	return NewRouter(deps)
}

func TestRouterServesRolesAndMetrics(t *testing.T) {
	r := newTestRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Body.String(), "Software Engineer")

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/interview/sessions", nil))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), "coach_sessions_active"))
}

func TestRouterWithoutOptionalRoutes(t *testing.T) {
	r := newTestRouter(t, false)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/conversation/", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}
