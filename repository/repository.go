// Package repository defines one strongly-typed store interface per entity,
// exposing only the operations the enforcement pipeline and handlers need.
// The gorm implementations live in this package; in-memory implementations
// (memory.go) serve as the unit-test seam.
package repository

import (
	"time"

	"github.com/trafficgrid/backend/models"
)

// ViolationFilter narrows violation listings.
type ViolationFilter struct {
	Status   string
	Type     string
	CameraID string
	Limit    int
	Offset   int
}

// ViolationRepository persists violation records. Create and AttachFine are
// the pipeline's two writes; UpdateStatus is the operator's.
type ViolationRepository interface {
	Create(v *models.Violation) error
	// AttachFine writes the fine fields exactly once, right after creation.
	AttachFine(id string, amount int64, at time.Time) error
	// GetByID returns the record enriched with camera and vehicle, or
	// (nil, nil) when it does not exist.
	GetByID(id string) (*models.Violation, error)
	List(f ViolationFilter) ([]models.Violation, int64, error)
	// UpdateStatus records an operator transition. Returns (nil, nil) when
	// the record does not exist.
	UpdateStatus(id string, status models.ViolationStatus, userID string, at time.Time) (*models.Violation, error)

	Count() (int64, error)
	CountSince(t time.Time) (int64, error)
	RecentConfidence(limit int) ([]float64, error)
}

// VehicleRepository owns all Vehicle mutations. RecordViolation must be
// atomic per plate: two concurrent detections for the same plate are both
// counted, never lost.
type VehicleRepository interface {
	RecordViolation(plate string, at time.Time) (*models.Vehicle, error)
	// GetByPlate returns (nil, nil) for an unseen plate.
	GetByPlate(plate string) (*models.Vehicle, error)
	GetWithViolations(plate string, recent int) (*models.Vehicle, error)
	SetBlacklist(plate string, blacklisted bool) (*models.Vehicle, error)
}

// FineRuleRepository reads the static fine policy table. A missing rule is
// (nil, nil), not an error.
type FineRuleRepository interface {
	GetByType(violationType string) (*models.FineRule, error)
	Upsert(rule *models.FineRule) error
}

// AlertRepository persists operator-facing alerts.
type AlertRepository interface {
	Create(a *models.Alert) error
	// ListActive returns alerts in ACTIVE or ACKNOWLEDGED state.
	ListActive() ([]models.Alert, error)
	// UpdateStatus stamps the matching timestamp. Returns (nil, nil) when
	// the alert does not exist.
	UpdateStatus(id string, status models.AlertStatus, at time.Time) (*models.Alert, error)
}

// Heartbeat carries one camera ping. Nil metric fields leave the stored
// value untouched.
type Heartbeat struct {
	At           time.Time
	Health       models.HealthStatus
	FPS          *float64
	LatencyMs    *int
	FailureCount *int
}

// CameraStats aggregates fleet health for the dashboard metrics panel.
type CameraStats struct {
	Online     int64   `json:"online_cameras"`
	Offline    int64   `json:"offline_cameras"`
	Degraded   int64   `json:"degraded_cameras"`
	AvgFPS     float64 `json:"avg_fps"`
	AvgLatency float64 `json:"avg_latency"`
}

// CameraRepository persists camera nodes. Heartbeat ingestion and the
// liveness sweep both converge on the same row via independent updates.
type CameraRepository interface {
	Create(cam *models.Camera) error
	// GetByID returns (nil, nil) for an unknown camera.
	GetByID(id string) (*models.Camera, error)
	List() ([]models.Camera, error)
	UpdateHeartbeat(id string, hb Heartbeat) (*models.Camera, error)
	// ListStaleOnline returns cameras still marked ONLINE whose last
	// heartbeat predates the cutoff.
	ListStaleOnline(cutoff time.Time) ([]models.Camera, error)
	MarkOffline(id string) error
	Stats() (CameraStats, error)
	CountOnline() (int64, error)
}

// AuditRepository appends audit-log entries for operator actions.
type AuditRepository interface {
	Record(entry *models.AuditLog) error
}
