package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

func TestSweepDemotesStaleCamerasOnce(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cameras := repository.NewMemCameraRepo(
		models.Camera{
			ID:            "cam-stale",
			Name:          "Junction East",
			Status:        models.CameraOnline,
			HealthStatus:  models.HealthHealthy,
			LastHeartbeat: now.Add(-2 * time.Minute),
		},
		models.Camera{
			ID:            "cam-fresh",
			Name:          "Junction West",
			Status:        models.CameraOnline,
			HealthStatus:  models.HealthHealthy,
			LastHeartbeat: now,
		},
	)
	pub := &recordingPublisher{}
	monitor := NewLivenessMonitor(cameras, pub, 30*time.Second, time.Second)

	monitor.Sweep()

	stale, err := cameras.GetByID("cam-stale")
	require.NoError(t, err)
	assert.Equal(t, models.CameraOffline, stale.Status)
	assert.Equal(t, models.HealthOffline, stale.HealthStatus)

	fresh, err := cameras.GetByID("cam-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.CameraOnline, fresh.Status)

	assert.Equal(t, []string{bus.TopicCameraOffline}, pub.published())

	// A second sweep is a no-op: the camera no longer matches the ONLINE
	// filter, so no duplicate event fires.
	monitor.Sweep()
	assert.Equal(t, []string{bus.TopicCameraOffline}, pub.published())
}

func TestSweepWithNothingStale(t *testing.T) {
	t.Parallel()

	cameras := repository.NewMemCameraRepo(models.Camera{
		ID:            "cam-1",
		Status:        models.CameraOnline,
		LastHeartbeat: time.Now(),
	})
	pub := &recordingPublisher{}
	monitor := NewLivenessMonitor(cameras, pub, 30*time.Second, time.Second)

	monitor.Sweep()
	assert.Empty(t, pub.published())
}

func TestHeartbeatRevivesSweptCamera(t *testing.T) {
	t.Parallel()

	cameras := repository.NewMemCameraRepo(models.Camera{
		ID:            "cam-1",
		Name:          "Junction North",
		Status:        models.CameraOnline,
		HealthStatus:  models.HealthHealthy,
		LastHeartbeat: time.Now().Add(-time.Minute),
	})
	pub := &recordingPublisher{}
	monitor := NewLivenessMonitor(cameras, pub, 30*time.Second, time.Second)
	svc := NewHeartbeatService(cameras, pub)

	monitor.Sweep()
	camera, err := svc.Ping("cam-1", floatPtr(25), intPtr(50), nil)
	require.NoError(t, err)
	assert.Equal(t, models.CameraOnline, camera.Status)
	assert.Equal(t, models.HealthHealthy, camera.HealthStatus)

	// The round trip is offline then recovered.
	assert.Equal(t, []string{bus.TopicCameraOffline, bus.TopicCameraRecovered}, pub.published())

	// And the revived camera is no longer stale.
	monitor.Sweep()
	assert.Equal(t, []string{bus.TopicCameraOffline, bus.TopicCameraRecovered}, pub.published())
}

func TestMonitorDefaultsApplied(t *testing.T) {
	t.Parallel()

	monitor := NewLivenessMonitor(repository.NewMemCameraRepo(), &recordingPublisher{}, 0, 0)
	assert.Equal(t, DefaultStaleAfter, monitor.staleAfter)
	assert.Equal(t, DefaultSweepInterval, monitor.interval)
}
