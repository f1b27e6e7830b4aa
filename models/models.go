package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ViolationType enum
type ViolationType string

const (
	ViolationNoHelmet     ViolationType = "NO_HELMET"
	ViolationRedLight     ViolationType = "RED_LIGHT"
	ViolationWrongWay     ViolationType = "WRONG_WAY"
	ViolationTripleRiding ViolationType = "TRIPLE_RIDING"
	ViolationOverspeed    ViolationType = "OVERSPEED"
)

// ViolationStatus enum - operator verification state
type ViolationStatus string

const (
	ViolationPending    ViolationStatus = "pending"
	ViolationVerified   ViolationStatus = "verified"
	ViolationRejected   ViolationStatus = "rejected"
	ViolationDispatched ViolationStatus = "dispatched"
)

// FineStatus enum
type FineStatus string

const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"
	FineWaived  FineStatus = "waived"
)

// RiskLevel enum - derived from a vehicle's violation count
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelForCount derives the risk tier from a vehicle's total violation
// count. The blacklist flag overrides this (see Vehicle).
func RiskLevelForCount(count int) RiskLevel {
	switch {
	case count >= 11:
		return RiskCritical
	case count >= 6:
		return RiskHigh
	case count >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AlertSeverity enum
type AlertSeverity string

const (
	AlertCritical AlertSeverity = "CRITICAL"
	AlertHigh     AlertSeverity = "HIGH"
	AlertMedium   AlertSeverity = "MEDIUM"
)

// AlertStatus enum - transitions strictly forward ACTIVE -> ACKNOWLEDGED -> RESOLVED
type AlertStatus string

const (
	AlertActive       AlertStatus = "ACTIVE"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertResolved     AlertStatus = "RESOLVED"
)

// CameraStatus enum
type CameraStatus string

const (
	CameraOnline  CameraStatus = "ONLINE"
	CameraOffline CameraStatus = "OFFLINE"
)

// HealthStatus enum - camera node health derived from heartbeat metrics
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthOffline  HealthStatus = "OFFLINE"
)

// JSONB type for GORM - can handle both objects and arrays
type JSONB struct {
	Data interface{} `json:"-"`
}

// NewJSONB creates a new JSONB from any value
func NewJSONB(v interface{}) JSONB {
	return JSONB{Data: v}
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j.Data)
}

// Camera model - a monitored camera node
type Camera struct {
	ID           string       `gorm:"primaryKey;column:id" json:"id"`
	Name         string       `gorm:"column:name" json:"name"`
	RTSPUrl      *string      `gorm:"column:rtsp_url" json:"rtspUrl,omitempty"`
	LocationLat  float64      `gorm:"column:location_lat" json:"locationLat"`
	LocationLng  float64      `gorm:"column:location_lng" json:"locationLng"`
	Status       CameraStatus `gorm:"column:status;default:ONLINE;index" json:"status"`
	HealthStatus HealthStatus `gorm:"column:health_status;default:HEALTHY" json:"healthStatus"`

	LastHeartbeat time.Time `gorm:"column:last_heartbeat;default:CURRENT_TIMESTAMP;index" json:"lastHeartbeat"`
	CurrentFPS    float64   `gorm:"column:current_fps;default:0" json:"currentFps"`
	LatencyMs     int       `gorm:"column:latency_ms;default:0" json:"latencyMs"`
	FailureCount  int       `gorm:"column:failure_count;default:0" json:"failureCount"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Violations []Violation `gorm:"foreignKey:CameraID" json:"violations,omitempty"`
}

func (Camera) TableName() string {
	return "cameras"
}

// Vehicle model - aggregate violation history for one license plate.
// Owned exclusively by the vehicle ledger; its read-modify-write is
// serialized per plate through the repository.
type Vehicle struct {
	PlateNumber     string     `gorm:"primaryKey;column:plate_number" json:"plateNumber"`
	VehicleType     *string    `gorm:"column:vehicle_type" json:"vehicleType,omitempty"`
	TotalViolations int        `gorm:"column:total_violations;default:0" json:"totalViolations"`
	RiskLevel       RiskLevel  `gorm:"column:risk_level;default:LOW;index" json:"riskLevel"`
	IsBlacklisted   bool       `gorm:"column:is_blacklisted;default:false;index" json:"isBlacklisted"`
	LastViolationAt *time.Time `gorm:"column:last_violation_at" json:"lastViolationAt,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Violations []Violation `gorm:"foreignKey:PlateNumber;references:PlateNumber" json:"violations,omitempty"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// FineRule model - base penalty and repeat multiplier per violation type.
// Seeded out of band; read-only from the pipeline's perspective.
type FineRule struct {
	ViolationType    string  `gorm:"primaryKey;column:violation_type" json:"violationType"`
	BaseAmount       int64   `gorm:"column:base_amount" json:"baseAmount"`
	RepeatMultiplier float64 `gorm:"column:repeat_multiplier;default:1.0" json:"repeatMultiplier"`
}

func (FineRule) TableName() string {
	return "violation_fine_rules"
}

// Violation model - one detected infraction. The fine fields are written
// exactly once, right after creation, and never recomputed.
type Violation struct {
	ID        string        `gorm:"primaryKey;column:id" json:"id"`
	Type      ViolationType `gorm:"column:type;index" json:"type"`
	CameraID  string        `gorm:"column:camera_id;index" json:"cameraId"`
	Camera    *Camera       `gorm:"foreignKey:CameraID" json:"camera,omitempty"`
	Timestamp time.Time     `gorm:"column:timestamp;default:CURRENT_TIMESTAMP;index" json:"timestamp"`

	PlateNumber *string  `gorm:"column:plate_number;index" json:"plateNumber,omitempty"`
	Vehicle     *Vehicle `gorm:"foreignKey:PlateNumber;references:PlateNumber" json:"vehicle,omitempty"`
	VehicleType *string  `gorm:"column:vehicle_type" json:"vehicleType,omitempty"`

	ConfidenceScore float64 `gorm:"column:confidence_score" json:"confidenceScore"`
	ThreatScore     float64 `gorm:"column:threat_score;default:0" json:"threatScore"`

	LocationLat      *float64 `gorm:"column:location_lat" json:"locationLat,omitempty"`
	LocationLng      *float64 `gorm:"column:location_lng" json:"locationLng,omitempty"`
	EvidenceImageURL *string  `gorm:"column:evidence_image_url" json:"evidenceImageUrl,omitempty"`
	VideoTimestamp   *float64 `gorm:"column:video_timestamp" json:"videoTimestamp,omitempty"`
	BoundingBox      *JSONB   `gorm:"column:bounding_box;type:jsonb" json:"boundingBox,omitempty"`

	FineAmount      *int64      `gorm:"column:fine_amount" json:"fineAmount,omitempty"`
	FineStatus      *FineStatus `gorm:"column:fine_status" json:"fineStatus,omitempty"`
	FineGeneratedAt *time.Time  `gorm:"column:fine_generated_at" json:"fineGeneratedAt,omitempty"`

	Status     ViolationStatus `gorm:"column:status;default:pending;index" json:"status"`
	VerifiedBy *string         `gorm:"column:verified_by" json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time      `gorm:"column:verified_at" json:"verifiedAt,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
}

func (Violation) TableName() string {
	return "violations"
}

// Alert model - operator-facing notification derived from a violation
type Alert struct {
	ID          string     `gorm:"primaryKey;column:id" json:"id"`
	ViolationID string     `gorm:"column:violation_id;index" json:"violationId"`
	Violation   *Violation `gorm:"foreignKey:ViolationID" json:"violation,omitempty"`

	CameraID    string  `gorm:"column:camera_id;index" json:"cameraId"`
	PlateNumber *string `gorm:"column:plate_number" json:"plateNumber,omitempty"`

	Severity AlertSeverity `gorm:"column:severity;index" json:"severity"`
	Status   AlertStatus   `gorm:"column:status;default:ACTIVE;index" json:"status"`

	CreatedAt      time.Time  `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}

// AuditLog model - one row per operator action on a record
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    string    `gorm:"column:user_id;index" json:"userId"`
	Action    string    `gorm:"column:action" json:"action"`
	Entity    string    `gorm:"column:entity" json:"entity"`
	EntityID  string    `gorm:"column:entity_id;index" json:"entityId"`
	Details   JSONB     `gorm:"column:details;type:jsonb" json:"details,omitempty"`
	Timestamp time.Time `gorm:"column:timestamp;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
