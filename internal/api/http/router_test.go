package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	store.PutCategory(domain.Category{
		ID:           1,
		Name:         "Hardware",
		SLA:          &domain.SLA{ID: 1, Name: "Standard", ResponseMinutes: 60, ResolutionMinutes: 120, Active: true},
		SLAID:        1,
		SpecialtyIDs: []int64{10},
		Active:       true,
	})
	store.PutTechnician(domain.Technician{ID: 5, UserID: 100, Name: "Ana", Availability: domain.AvailabilityAvailable, SpecialtyIDs: []int64{10}})

	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	triageSvc := service.NewTriageService(service.TriageDependencies{Store: store, Dispatcher: dispatcher, Logger: logger, Metrics: metrics})
	notifications := service.NewNotificationService(service.NotificationDependencies{Dispatcher: dispatcher, Store: store, Logger: logger, Config: config.NotificationConfig{}})
	notifications.RegisterHandlers()
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-service", "test", map[string]handlers.Pinger{"postgres": nil}),
		Tickets:        handlers.NewTicketsHandler(service.NewTicketService(service.TicketDependencies{Store: store, Dispatcher: dispatcher, Triage: triageSvc, Logger: logger})),
		Triage:         handlers.NewTriageHandler(triageSvc),
		Technicians:    handlers.NewTechniciansHandler(service.NewTechnicianService(store, logger, 0)),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens, metrics: metrics}
}

func (s *testServer) token(t *testing.T, p domain.Principal) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(p)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestTicketFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	technicianID := int64(5)
	adminToken := s.token(t, domain.Principal{UserID: 1, Role: domain.RoleAdministrator})
	clientToken := s.token(t, domain.Principal{UserID: 7, Role: domain.RoleClient})
	strangerToken := s.token(t, domain.Principal{UserID: 8, Role: domain.RoleClient})
	techToken := s.token(t, domain.Principal{UserID: 100, Role: domain.RoleTechnician, TechnicianID: &technicianID})

	status, body := s.do(t, nethttp.MethodPost, "/tickets", clientToken, map[string]any{
		"category_id": 1, "title": "Laptop will not boot", "priority": "high",
	})
	require.Equal(t, nethttp.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "PENDING", data["status"])
	assert.Equal(t, "HIGH", data["priority"])

	status, body = s.do(t, nethttp.MethodGet, "/tickets/1", strangerToken, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = s.do(t, nethttp.MethodPost, "/triage/tickets/1/auto", clientToken, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, body = s.do(t, nethttp.MethodPost, "/triage/tickets/1/auto", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	result := body["data"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, float64(5), result["technician_id"])

	status, body = s.do(t, nethttp.MethodPost, "/triage/tickets/1/auto", adminToken, nil)
	assert.Equal(t, nethttp.StatusUnprocessableEntity, status)
	assert.Equal(t, "PRECONDITION_FAILED", errorCode(body))

	status, body = s.do(t, nethttp.MethodPost, "/tickets/1/status", techToken, map[string]any{
		"status": "RESOLVED", "notes": "done", "evidence": []map[string]string{{"file_name": "a.png", "storage_path": "x/a.png"}},
	})
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, body = s.do(t, nethttp.MethodPost, "/tickets/1/status", techToken, map[string]any{
		"status": "IN_PROGRESS", "notes": "looking", "evidence": []map[string]string{{"file_name": "a.png", "storage_path": "x/a.png"}},
	})
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, "IN_PROGRESS", body["data"].(map[string]any)["status"])

	status, body = s.do(t, nethttp.MethodGet, "/tickets/1/history", clientToken, nil)
	require.Equal(t, nethttp.StatusOK, status)
	history := body["data"].(map[string]any)
	assert.Len(t, history["state_changes"], 3)
	assert.Len(t, history["assignments"], 2)

	status, body = s.do(t, nethttp.MethodGet, "/tickets/1/sla", clientToken, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "Standard", body["data"].(map[string]any)["sla_name"])

	status, body = s.do(t, nethttp.MethodGet, "/notifications/pending-count", clientToken, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(3), body["data"].(map[string]any)["pending"])

	status, body = s.do(t, nethttp.MethodGet, "/technicians", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, status)
	techs := body["data"].([]any)
	require.Len(t, techs, 1)
	assert.Equal(t, float64(1), techs[0].(map[string]any)["workload"])

	status, _ = s.do(t, nethttp.MethodPost, "/technicians/5/workload/decrement", adminToken, nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, body = s.do(t, nethttp.MethodPost, "/tickets/1/rating", clientToken, map[string]any{"score": 4})
	assert.Equal(t, nethttp.StatusUnprocessableEntity, status, "work still in progress")
	assert.Equal(t, "PRECONDITION_FAILED", errorCode(body))

	status, body = s.do(t, nethttp.MethodPost, "/tickets/1/status", techToken, map[string]any{
		"status": "RESOLVED", "notes": "reseated RAM", "evidence": []map[string]string{{"file_name": "b.png", "storage_path": "x/b.png"}},
	})
	require.Equal(t, nethttp.StatusOK, status, body)

	status, body = s.do(t, nethttp.MethodPost, "/tickets/1/rating", clientToken, map[string]any{"score": 4, "comment": "quick"})
	require.Equal(t, nethttp.StatusCreated, status, body)
	assert.Equal(t, float64(5), body["data"].(map[string]any)["technician_id"])

	status, _ = s.do(t, nethttp.MethodPost, "/tickets/1/rating", clientToken, map[string]any{"score": 5})
	assert.Equal(t, nethttp.StatusUnprocessableEntity, status)

	status, body = s.do(t, nethttp.MethodGet, "/tickets/1/rating", techToken, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(4), body["data"].(map[string]any)["score"])

	status, body = s.do(t, nethttp.MethodGet, "/technicians/5", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(4), body["data"].(map[string]any)["average_rating"])

	status, _ = s.do(t, nethttp.MethodGet, "/technicians/5", clientToken, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)

	snapshot := s.metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Triage["assigned"])
	assert.Equal(t, int64(1), snapshot.Triage["rejected"])
}

func TestRequestValidationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	clientToken := s.token(t, domain.Principal{UserID: 7, Role: domain.RoleClient})

	status, body := s.do(t, nethttp.MethodGet, "/tickets", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, nethttp.MethodGet, "/tickets/abc", clientToken, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, nethttp.MethodPost, "/tickets", clientToken, map[string]any{"category_id": 1, "title": "x", "priority": "someday"})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, nethttp.MethodGet, "/tickets/42", clientToken, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, nethttp.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestHealthProbes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
}
