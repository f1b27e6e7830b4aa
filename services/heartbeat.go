package services

import (
	"log"
	"time"

	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

// Health thresholds for heartbeat metrics.
const (
	degradedFPSThreshold     = 10.0
	degradedLatencyThreshold = 500
)

// HealthForMetrics derives node health from one heartbeat's metrics. Nil
// metrics don't count against the camera.
func HealthForMetrics(fps *float64, latencyMs *int) models.HealthStatus {
	if (fps != nil && *fps < degradedFPSThreshold) || (latencyMs != nil && *latencyMs > degradedLatencyThreshold) {
		return models.HealthDegraded
	}
	return models.HealthHealthy
}

// HeartbeatService ingests camera pings from the edge AI service. Health
// transitions publish edge-triggered events: only the change fires, repeated
// heartbeats in the same state publish nothing.
type HeartbeatService struct {
	cameras   repository.CameraRepository
	publisher bus.Publisher
}

func NewHeartbeatService(cameras repository.CameraRepository, publisher bus.Publisher) *HeartbeatService {
	return &HeartbeatService{cameras: cameras, publisher: publisher}
}

// Ping records one heartbeat. Returns (nil, nil) when the camera is unknown.
func (s *HeartbeatService) Ping(cameraID string, fps *float64, latencyMs *int, failureCount *int) (*models.Camera, error) {
	before, err := s.cameras.GetByID(cameraID)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, nil
	}

	health := HealthForMetrics(fps, latencyMs)
	camera, err := s.cameras.UpdateHeartbeat(cameraID, repository.Heartbeat{
		At:           time.Now(),
		Health:       health,
		FPS:          fps,
		LatencyMs:    latencyMs,
		FailureCount: failureCount,
	})
	if err != nil {
		return nil, err
	}
	if camera == nil {
		return nil, nil
	}

	switch {
	case health == models.HealthDegraded && before.HealthStatus != models.HealthDegraded:
		payload := map[string]interface{}{
			"id":      camera.ID,
			"name":    camera.Name,
			"fps":     camera.CurrentFPS,
			"latency": camera.LatencyMs,
		}
		if err := s.publisher.Publish(bus.TopicCameraDegraded, payload); err != nil {
			log.Printf("⚠️ Failed to publish degraded event for camera %s: %v", camera.ID, err)
		}
	case health == models.HealthHealthy && before.HealthStatus != models.HealthHealthy:
		payload := map[string]interface{}{
			"id":   camera.ID,
			"name": camera.Name,
		}
		if err := s.publisher.Publish(bus.TopicCameraRecovered, payload); err != nil {
			log.Printf("⚠️ Failed to publish recovered event for camera %s: %v", camera.ID, err)
		}
	}

	return camera, nil
}
