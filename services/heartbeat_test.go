package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

// recordingPublisher captures published topics for assertions.
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

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestHealthForMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fps     *float64
		latency *int
		want    models.HealthStatus
	}{
		{"nominal metrics", floatPtr(24), intPtr(80), models.HealthHealthy},
		{"no metrics at all", nil, nil, models.HealthHealthy},
		{"low fps", floatPtr(5), intPtr(80), models.HealthDegraded},
		{"fps at threshold is healthy", floatPtr(10), intPtr(80), models.HealthHealthy},
		{"high latency", floatPtr(24), intPtr(900), models.HealthDegraded},
		{"latency at threshold is healthy", floatPtr(24), intPtr(500), models.HealthHealthy},
		{"only bad latency reported", nil, intPtr(750), models.HealthDegraded},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HealthForMetrics(tt.fps, tt.latency))
		})
	}
}

func TestHeartbeatDegradationIsEdgeTriggered(t *testing.T) {
	t.Parallel()

	cameras := repository.NewMemCameraRepo(models.Camera{
		ID:           "cam-1",
		Name:         "Gate North",
		Status:       models.CameraOnline,
		HealthStatus: models.HealthHealthy,
	})
	pub := &recordingPublisher{}
	svc := NewHeartbeatService(cameras, pub)

	// First low-fps ping flips to DEGRADED and publishes once.
	camera, err := svc.Ping("cam-1", floatPtr(5), intPtr(80), nil)
	require.NoError(t, err)
	require.NotNil(t, camera)
	assert.Equal(t, models.HealthDegraded, camera.HealthStatus)
	assert.Equal(t, []string{bus.TopicCameraDegraded}, pub.published())

	// Repeat pings in the same state publish nothing.
	_, err = svc.Ping("cam-1", floatPtr(5), intPtr(80), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{bus.TopicCameraDegraded}, pub.published())

	// Recovery publishes exactly once too.
	camera, err = svc.Ping("cam-1", floatPtr(25), intPtr(60), nil)
	require.NoError(t, err)
	assert.Equal(t, models.HealthHealthy, camera.HealthStatus)
	assert.Equal(t, []string{bus.TopicCameraDegraded, bus.TopicCameraRecovered}, pub.published())

	_, err = svc.Ping("cam-1", floatPtr(25), intPtr(60), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{bus.TopicCameraDegraded, bus.TopicCameraRecovered}, pub.published())
}

func TestHeartbeatUnknownCamera(t *testing.T) {
	t.Parallel()

	svc := NewHeartbeatService(repository.NewMemCameraRepo(), &recordingPublisher{})
	camera, err := svc.Ping("ghost", floatPtr(25), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, camera)
}

func TestHeartbeatRefreshesTimestampAndStatus(t *testing.T) {
	t.Parallel()

	stale := time.Now().Add(-time.Minute)
	cameras := repository.NewMemCameraRepo(models.Camera{
		ID:            "cam-2",
		Name:          "Gate South",
		Status:        models.CameraOffline,
		HealthStatus:  models.HealthOffline,
		LastHeartbeat: stale,
	})
	svc := NewHeartbeatService(cameras, &recordingPublisher{})

	camera, err := svc.Ping("cam-2", floatPtr(30), intPtr(40), intPtr(0))
	require.NoError(t, err)
	require.NotNil(t, camera)
	assert.Equal(t, models.CameraOnline, camera.Status)
	assert.True(t, camera.LastHeartbeat.After(stale))
	assert.Equal(t, 30.0, camera.CurrentFPS)
	assert.Equal(t, 40, camera.LatencyMs)
}
