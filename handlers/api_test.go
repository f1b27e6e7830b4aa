package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficgrid/backend/enforcement"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
	"github.com/trafficgrid/backend/services"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

type testEnv struct {
	router  *gin.Engine
	repos   *repository.Repositories
	cameras *repository.MemCameraRepo
	pub     *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cameras := repository.NewMemCameraRepo(models.Camera{
		ID:            "cam-1",
		Name:          "Gate North",
		Status:        models.CameraOnline,
		HealthStatus:  models.HealthHealthy,
		LastHeartbeat: time.Now(),
	})
	repos := &repository.Repositories{
		Violations: repository.NewMemViolationRepo(),
		Vehicles:   repository.NewMemVehicleRepo(),
		FineRules: repository.NewMemFineRuleRepo(
			models.FineRule{ViolationType: "NO_HELMET", BaseAmount: 500, RepeatMultiplier: 1.5},
			models.FineRule{ViolationType: "WRONG_WAY", BaseAmount: 1500, RepeatMultiplier: 2.5},
		),
		Alerts:  repository.NewMemAlertRepo(),
		Cameras: cameras,
		Audit:   repository.NewMemAuditRepo(),
	}

	pub := &recordingPublisher{}
	resolver := enforcement.NewRuleResolver(repos.FineRules)
	calculator := enforcement.NewCalculator(resolver)
	ledger := enforcement.NewLedger(repos.Vehicles)
	policy := enforcement.NewAlertPolicy(repos.Alerts, pub)
	pipeline := enforcement.NewPipeline(repos.Violations, repos.Audit, ledger, calculator, policy, pub)
	heartbeats := services.NewHeartbeatService(repos.Cameras, pub)

	api := NewAPI(nil, repos, pipeline, ledger, calculator, heartbeats, nil, pub)

	router := gin.New()
	router.POST("/api/violations", api.PostViolation)
	router.GET("/api/violations/:id", api.GetViolation)
	router.GET("/api/violations/:id/fine", api.GetFineDetails)
	router.PATCH("/api/violations/:id/status", api.PatchViolationStatus)
	router.GET("/api/alerts/active", api.GetActiveAlerts)
	router.PATCH("/api/alerts/:id/status", api.PatchAlertStatus)
	router.POST("/api/cameras/:id/heartbeat", api.Heartbeat)
	router.GET("/api/cameras/status", api.GetCameraStatus)
	router.GET("/api/vehicles/:plate", api.GetVehicle)

	return &testEnv{router: router, repos: repos, cameras: cameras, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestPostViolationCreatesRecord(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/violations", gin.H{
		"type":            "NO_HELMET",
		"plateNumber":     "DL01AB1234",
		"confidenceScore": 97,
		"cameraId":        "cam-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var violation models.Violation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &violation))
	assert.Equal(t, models.ViolationNoHelmet, violation.Type)
	assert.Equal(t, models.ViolationPending, violation.Status)
	require.NotNil(t, violation.FineAmount)
	assert.Equal(t, int64(500), *violation.FineAmount)
}

func TestPostViolationAcceptsStringScores(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/violations", gin.H{
		"type":            "NO_HELMET",
		"confidenceScore": "88.5",
		"cameraId":        "cam-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var violation models.Violation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &violation))
	assert.Equal(t, 88.5, violation.ConfidenceScore)
}

func TestPostViolationValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing confidence", gin.H{"type": "NO_HELMET", "cameraId": "cam-1"}},
		{"malformed confidence", gin.H{"type": "NO_HELMET", "cameraId": "cam-1", "confidenceScore": "not-a-number"}},
		{"missing type", gin.H{"cameraId": "cam-1", "confidenceScore": 90}},
		{"confidence out of range", gin.H{"type": "NO_HELMET", "cameraId": "cam-1", "confidenceScore": 120}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/violations", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetFineDetails(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/violations", gin.H{
		"type":            "NO_HELMET",
		"plateNumber":     "DL01AB1234",
		"confidenceScore": 90,
		"cameraId":        "cam-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var violation models.Violation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &violation))

	w = env.do(t, http.MethodGet, "/api/violations/"+violation.ID+"/fine", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		FineAmount  *int64                    `json:"fineAmount"`
		FineStatus  *models.FineStatus        `json:"fineStatus"`
		Calculation enforcement.FineBreakdown `json:"calculation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.FineAmount)
	assert.Equal(t, int64(500), *resp.FineAmount)
	assert.Equal(t, int64(500), resp.Calculation.BaseAmount)
	assert.Equal(t, 1, resp.Calculation.VehicleViolationCount)

	w = env.do(t, http.MethodGet, "/api/violations/unknown/fine", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatchViolationStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/violations", gin.H{
		"type":            "NO_HELMET",
		"confidenceScore": 90,
		"cameraId":        "cam-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var violation models.Violation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &violation))

	w = env.do(t, http.MethodPatch, "/api/violations/"+violation.ID+"/status", gin.H{"status": "verified"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Violation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.ViolationVerified, updated.Status)

	w = env.do(t, http.MethodPatch, "/api/violations/"+violation.ID+"/status", gin.H{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/violations/unknown/status", gin.H{"status": "verified"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	// A wrong-way detection raises a CRITICAL alert.
	w := env.do(t, http.MethodPost, "/api/violations", gin.H{
		"type":            "WRONG_WAY",
		"plateNumber":     "MH12CD5678",
		"confidenceScore": 90,
		"cameraId":        "cam-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/alerts/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Alerts []models.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Alerts, 1)
	alert := list.Alerts[0]
	assert.Equal(t, models.AlertCritical, alert.Severity)

	w = env.do(t, http.MethodPatch, "/api/alerts/"+alert.ID+"/status", gin.H{"status": "ACKNOWLEDGED"})
	require.Equal(t, http.StatusOK, w.Code)
	var acked models.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acked))
	assert.Equal(t, models.AlertAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	// An acknowledged alert still shows in the active queue.
	w = env.do(t, http.MethodGet, "/api/alerts/active", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Alerts, 1)

	w = env.do(t, http.MethodPatch, "/api/alerts/"+alert.ID+"/status", gin.H{"status": "RESOLVED"})
	require.Equal(t, http.StatusOK, w.Code)

	// A resolved one drops off.
	w = env.do(t, http.MethodGet, "/api/alerts/active", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Alerts)

	// Only the two operator transitions are accepted.
	w = env.do(t, http.MethodPatch, "/api/alerts/"+alert.ID+"/status", gin.H{"status": "ACTIVE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHeartbeatEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/cameras/cam-1/heartbeat", gin.H{"fps": 5, "latencyMs": 80})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                `json:"success"`
		Health  models.HealthStatus `json:"health"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.HealthDegraded, resp.Health)

	w = env.do(t, http.MethodPost, "/api/cameras/ghost/heartbeat", gin.H{"fps": 25})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCameraStatusRollup(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.cameras.Create(&models.Camera{
		ID:     "cam-2",
		Status: models.CameraOffline,
	}))

	w := env.do(t, http.MethodGet, "/api/cameras/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Overall string                 `json:"overall"`
		Stats   repository.CameraStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "WARNING", resp.Overall)
	assert.Equal(t, int64(1), resp.Stats.Online)
	assert.Equal(t, int64(1), resp.Stats.Offline)
}

func TestGetVehicleNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/vehicles/ZZ99ZZ9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
