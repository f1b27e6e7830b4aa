package services

import (
	"context"
	"log"
	"time"

	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

const (
	// DefaultStaleAfter is how long a camera may go without a heartbeat
	// before the sweep demotes it to OFFLINE.
	DefaultStaleAfter = 30 * time.Second
	// DefaultSweepInterval is how often the sweep runs.
	DefaultSweepInterval = 10 * time.Second
)

// LivenessMonitor periodically demotes stale-heartbeat cameras to OFFLINE.
// The loop is level-triggered reconciliation: it is safe to run alongside
// heartbeat ingestion because both converge on the same row, and a camera
// already OFFLINE no longer matches the sweep's filter.
type LivenessMonitor struct {
	cameras   repository.CameraRepository
	publisher bus.Publisher

	staleAfter time.Duration
	interval   time.Duration
}

func NewLivenessMonitor(cameras repository.CameraRepository, publisher bus.Publisher, staleAfter, interval time.Duration) *LivenessMonitor {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &LivenessMonitor{
		cameras:    cameras,
		publisher:  publisher,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

// Run sweeps on a fixed interval until the context ends.
func (m *LivenessMonitor) Run(ctx context.Context) {
	log.Printf("🩺 Camera liveness monitor started (stale after %s, sweeping every %s)", m.staleAfter, m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one reconciliation pass. Each newly stale camera flips to
// OFFLINE exactly once; later sweeps skip it because its status no longer
// matches the ONLINE filter.
func (m *LivenessMonitor) Sweep() {
	cutoff := time.Now().Add(-m.staleAfter)
	stalled, err := m.cameras.ListStaleOnline(cutoff)
	if err != nil {
		log.Printf("⚠️ Liveness sweep failed: %v", err)
		return
	}

	for _, cam := range stalled {
		if err := m.cameras.MarkOffline(cam.ID); err != nil {
			log.Printf("⚠️ Failed to mark camera %s offline: %v", cam.ID, err)
			continue
		}
		log.Printf("🩺 Camera %s (%s) went OFFLINE (last heartbeat %s)", cam.Name, cam.ID, cam.LastHeartbeat.Format(time.RFC3339))

		payload := map[string]interface{}{
			"id":     cam.ID,
			"name":   cam.Name,
			"status": models.CameraOffline,
		}
		if err := m.publisher.Publish(bus.TopicCameraOffline, payload); err != nil {
			log.Printf("⚠️ Failed to publish offline event for camera %s: %v", cam.ID, err)
		}
	}
}
