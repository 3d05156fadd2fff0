// internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"demo-backend/internal/common/auth"
	"demo-backend/internal/common/config"
	"demo-backend/internal/common/logger"
	"demo-backend/internal/demorequest"
	"demo-backend/internal/models"
	"demo-backend/internal/provisioning"
)

// ==========================
// Test Fakes
// ==========================

type fakeVerifier struct {
	identity *auth.Identity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type fakeStore struct {
	createFn func(ctx context.Context, userID string, org models.OrganizationSnapshot, usr models.UserSnapshot) (*models.DemoRequest, error)
	listFn   func(ctx context.Context, userID string) ([]models.DemoRequestSummary, error)
	getFn    func(ctx context.Context, id, userID string) (*models.DemoRequest, error)
}

func (f *fakeStore) Create(ctx context.Context, userID string, org models.OrganizationSnapshot, usr models.UserSnapshot) (*models.DemoRequest, error) {
	if f.createFn != nil {
		return f.createFn(ctx, userID, org, usr)
	}
	now := time.Now().UTC()
	return &models.DemoRequest{
		ID:           "req-001",
		UserID:       userID,
		Organization: org,
		User:         usr,
		Status:       models.StatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (f *fakeStore) RecordOutcome(ctx context.Context, id string, outcome demorequest.Outcome) error {
	return nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID string) ([]models.DemoRequestSummary, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID)
	}
	return []models.DemoRequestSummary{}, nil
}

func (f *fakeStore) GetByIDForUser(ctx context.Context, id, userID string) (*models.DemoRequest, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id, userID)
	}
	return nil, demorequest.ErrNotFound
}

func (f *fakeStore) MarkStaleFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

type fakeProvisioner struct {
	fn func(ctx context.Context, payload *provisioning.Payload) (json.RawMessage, int, error)
}

func (f *fakeProvisioner) CreateDemo(ctx context.Context, payload *provisioning.Payload) (json.RawMessage, int, error) {
	if f.fn != nil {
		return f.fn(ctx, payload)
	}
	return json.RawMessage(`{"url":"https://demo.example"}`), 201, nil
}

func newTestServer(t *testing.T, store demorequest.Store, prov demorequest.ProvisioningAPI, verifier auth.Verifier) http.Handler {
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger(t)
	service := demorequest.NewService(demorequest.ServiceDependencies{
		Store:       store,
		Provisioner: prov,
		Logger:      log,
	}, demorequest.DefaultConfig())

	cfg := &config.Config{}
	cfg.App.Name = "demo-backend"
	cfg.App.Version = "test"
	cfg.Server.Address = ":0"

	return New(cfg, service, verifier, log).Handler()
}

func authedVerifier() *fakeVerifier {
	return &fakeVerifier{identity: &auth.Identity{UserID: "user-001", Email: "asha@example.com"}}
}

func doRequest(handler http.Handler, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

// ==========================
// Auth boundary
// ==========================

func TestServer_RejectsMissingToken(t *testing.T) {
	handler := newTestServer(t, &fakeStore{}, &fakeProvisioner{}, authedVerifier())

	for _, path := range []string{"/api/demo/requests", "/api/demo/requests/req-001"} {
		recorder := doRequest(handler, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, path)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, "Access token required", response["error"])
	}

	recorder := doRequest(handler, http.MethodPost, "/api/demo/request", []byte(`{}`), "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestServer_RejectsInvalidToken(t *testing.T) {
	verifier := &fakeVerifier{err: stderrors.New("token expired")}
	handler := newTestServer(t, &fakeStore{}, &fakeProvisioner{}, verifier)

	recorder := doRequest(handler, http.MethodGet, "/api/demo/requests", nil, "stale-token")

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Invalid or expired token", response["error"])
}

// ==========================
// POST /api/demo/request
// ==========================

func TestServer_CreateDemoRequest_Success(t *testing.T) {
	credentials := `{"url":"https://demo.example","username":"asha","password":"s3cret"}`

	prov := &fakeProvisioner{
		fn: func(ctx context.Context, payload *provisioning.Payload) (json.RawMessage, int, error) {
			return json.RawMessage(credentials), 201, nil
		},
	}
	handler := newTestServer(t, &fakeStore{}, prov, authedVerifier())

	body := []byte(`{"organization":{"name":"Acme Traders"},"user":{"email":"owner@acme.example"}}`)
	recorder := doRequest(handler, http.MethodPost, "/api/demo/request", body, "valid-token")

	assert.Equal(t, http.StatusCreated, recorder.Code)

	var response struct {
		Message       string          `json:"message"`
		DemoRequestID string          `json:"demo_request_id"`
		Credentials   json.RawMessage `json:"credentials"`
		Status        string          `json:"status"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Demo request created successfully", response.Message)
	assert.Equal(t, "req-001", response.DemoRequestID)
	assert.Equal(t, "completed", response.Status)
	assert.JSONEq(t, credentials, string(response.Credentials))
}

func TestServer_CreateDemoRequest_ExternalFailure(t *testing.T) {
	errorBody := `{"error":"capacity exhausted"}`

	prov := &fakeProvisioner{
		fn: func(ctx context.Context, payload *provisioning.Payload) (json.RawMessage, int, error) {
			return nil, 503, &provisioning.APIError{StatusCode: 503, Body: []byte(errorBody)}
		},
	}
	handler := newTestServer(t, &fakeStore{}, prov, authedVerifier())

	recorder := doRequest(handler, http.MethodPost, "/api/demo/request", []byte(`{}`), "valid-token")

	// The request row is durable, so the failure response still carries
	// the id and the external detail.
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)

	var response struct {
		Error         string          `json:"error"`
		DemoRequestID string          `json:"demo_request_id"`
		Status        string          `json:"status"`
		Details       json.RawMessage `json:"details"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Failed to create demo credentials", response.Error)
	assert.Equal(t, "req-001", response.DemoRequestID)
	assert.Equal(t, "failed", response.Status)
	assert.JSONEq(t, errorBody, string(response.Details))
}

func TestServer_CreateDemoRequest_LocalFault(t *testing.T) {
	store := &fakeStore{
		createFn: func(ctx context.Context, userID string, org models.OrganizationSnapshot, usr models.UserSnapshot) (*models.DemoRequest, error) {
			return nil, stderrors.New("connection reset")
		},
	}
	handler := newTestServer(t, store, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodPost, "/api/demo/request", []byte(`{}`), "valid-token")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Failed to process demo request", response["error"])
	// A local fault never exposes a request id.
	assert.NotContains(t, response, "demo_request_id")
	assert.NotContains(t, response, "details")
}

func TestServer_CreateDemoRequest_ValidationFailure(t *testing.T) {
	handler := newTestServer(t, &fakeStore{}, &fakeProvisioner{}, authedVerifier())

	body := []byte(`{"organization":{"email":"not-an-email"}}`)
	recorder := doRequest(handler, http.MethodPost, "/api/demo/request", body, "valid-token")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.NotEmpty(t, response["error"])
}

// ==========================
// GET /api/demo/requests
// ==========================

func TestServer_ListDemoRequests_Success(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{
		listFn: func(ctx context.Context, userID string) ([]models.DemoRequestSummary, error) {
			assert.Equal(t, "user-001", userID)
			return []models.DemoRequestSummary{
				{
					ID:               "req-002",
					OrganizationName: "Beta Corp",
					Credentials:      json.RawMessage(`{"url":"https://b.example"}`),
					Status:           models.StatusCompleted,
					CreatedAt:        now,
					UpdatedAt:        now,
				},
				{ID: "req-001", Status: models.StatusFailed, CreatedAt: now, UpdatedAt: now},
			}, nil
		},
	}
	handler := newTestServer(t, store, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/api/demo/requests", nil, "valid-token")

	assert.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Requests []map[string]interface{} `json:"requests"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Len(t, response.Requests, 2)
	assert.Equal(t, "req-002", response.Requests[0]["id"])
	assert.Equal(t, "completed", response.Requests[0]["status"])
	assert.Equal(t, "req-001", response.Requests[1]["id"])
}

func TestServer_ListDemoRequests_Empty(t *testing.T) {
	handler := newTestServer(t, &fakeStore{}, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/api/demo/requests", nil, "valid-token")

	assert.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Requests []interface{} `json:"requests"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.NotNil(t, response.Requests)
	assert.Empty(t, response.Requests)
}

func TestServer_ListDemoRequests_StoreError(t *testing.T) {
	store := &fakeStore{
		listFn: func(ctx context.Context, userID string) ([]models.DemoRequestSummary, error) {
			return nil, stderrors.New("connection reset")
		},
	}
	handler := newTestServer(t, store, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/api/demo/requests", nil, "valid-token")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Failed to fetch demo requests", response["error"])
}

// ==========================
// GET /api/demo/requests/:id
// ==========================

func TestServer_GetDemoRequest_Success(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{
		getFn: func(ctx context.Context, id, userID string) (*models.DemoRequest, error) {
			assert.Equal(t, "req-001", id)
			assert.Equal(t, "user-001", userID)
			return &models.DemoRequest{
				ID:           id,
				UserID:       userID,
				Organization: models.OrganizationSnapshot{Name: "Acme Traders"},
				Credentials:  json.RawMessage(`{"url":"https://demo.example"}`),
				Status:       models.StatusCompleted,
				CreatedAt:    now,
				UpdatedAt:    now,
			}, nil
		},
	}
	handler := newTestServer(t, store, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/api/demo/requests/req-001", nil, "valid-token")

	assert.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Request map[string]interface{} `json:"request"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "req-001", response.Request["id"])
	assert.Equal(t, "completed", response.Request["status"])
}

func TestServer_GetDemoRequest_NotFound(t *testing.T) {
	// The default fake store returns ErrNotFound, which also covers ids
	// owned by another user.
	handler := newTestServer(t, &fakeStore{}, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/api/demo/requests/other-req", nil, "valid-token")

	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Demo request not found", response["error"])
}

func TestServer_GetDemoRequest_StoreError(t *testing.T) {
	store := &fakeStore{
		getFn: func(ctx context.Context, id, userID string) (*models.DemoRequest, error) {
			return nil, stderrors.New("connection reset")
		},
	}
	handler := newTestServer(t, store, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/api/demo/requests/req-001", nil, "valid-token")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "Failed to fetch demo request", response["error"])
}

// ==========================
// Unauthenticated surfaces
// ==========================

func TestServer_Health(t *testing.T) {
	handler := newTestServer(t, &fakeStore{}, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, recorder.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "demo-backend", response["service"])
}

func TestServer_Health_DegradedOnFailedCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger(t)
	service := demorequest.NewService(demorequest.ServiceDependencies{
		Store:       &fakeStore{},
		Provisioner: &fakeProvisioner{},
		Logger:      log,
	}, demorequest.DefaultConfig())

	cfg := &config.Config{}
	cfg.App.Name = "demo-backend"

	handler := New(cfg, service, authedVerifier(), log,
		HealthCheck{Name: "postgres", Check: func(ctx context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return stderrors.New("connection refused") }},
	).Handler()

	recorder := doRequest(handler, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	var response struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.Equal(t, "ok", response.Dependencies["postgres"])
	assert.Contains(t, response.Dependencies["redis"], "connection refused")
}

func TestServer_Metrics(t *testing.T) {
	handler := newTestServer(t, &fakeStore{}, &fakeProvisioner{}, authedVerifier())

	recorder := doRequest(handler, http.MethodGet, "/metrics", nil, "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "go_")
}
