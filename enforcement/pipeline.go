package enforcement

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

// ErrValidation marks a detection rejected before any write.
var ErrValidation = errors.New("invalid detection")

// Outcome is the terminal state of one pipeline run.
type Outcome string

const (
	// OutcomeCompleted - all stages ran.
	OutcomeCompleted Outcome = "completed"
	// OutcomePartiallyCompleted - the base record is durable but a later
	// stage failed; the record stays queryable with nulled downstream
	// fields for manual reconciliation.
	OutcomePartiallyCompleted Outcome = "partially_completed"
	// OutcomeRejected - validation failed before any write.
	OutcomeRejected Outcome = "rejected"
)

// Submission is one inbound detection from a camera or AI service.
type Submission struct {
	Type             string
	PlateNumber      string
	VehicleType      string
	ConfidenceScore  float64
	ThreatScore      float64
	CameraID         string
	LocationLat      *float64
	LocationLng      *float64
	EvidenceImageURL string
	VideoTimestamp   *float64
	BoundingBox      interface{}
	Timestamp        time.Time
}

func (s *Submission) validate() error {
	if s.Type == "" {
		return fmt.Errorf("%w: violation type is required", ErrValidation)
	}
	if s.CameraID == "" {
		return fmt.Errorf("%w: camera id is required", ErrValidation)
	}
	if s.ConfidenceScore < 0 || s.ConfidenceScore > 100 {
		return fmt.Errorf("%w: confidence score must be between 0 and 100", ErrValidation)
	}
	if s.ThreatScore < 0 || s.ThreatScore > 100 {
		return fmt.Errorf("%w: threat score must be between 0 and 100", ErrValidation)
	}
	return nil
}

// Result is what one pipeline run produced.
type Result struct {
	Violation *models.Violation
	Vehicle   *models.Vehicle
	Alert     *models.Alert
	Outcome   Outcome
}

// Pipeline sequences ledger update, fine calculation, persistence, alert
// evaluation and event emission for every inbound detection. It is stateless
// between invocations; every dependency arrives through the constructor.
type Pipeline struct {
	violations  repository.ViolationRepository
	audit       repository.AuditRepository
	ledger      *Ledger
	calculator  *Calculator
	alertPolicy *AlertPolicy
	publisher   bus.Publisher
}

func NewPipeline(
	violations repository.ViolationRepository,
	audit repository.AuditRepository,
	ledger *Ledger,
	calculator *Calculator,
	alertPolicy *AlertPolicy,
	publisher bus.Publisher,
) *Pipeline {
	return &Pipeline{
		violations:  violations,
		audit:       audit,
		ledger:      ledger,
		calculator:  calculator,
		alertPolicy: alertPolicy,
		publisher:   publisher,
	}
}

// Submit runs the pipeline for one detection. Stages run strictly in order;
// no stage starts before its predecessor's write is durable. Once the base
// record is persisted nothing is rolled back: a captured violation is never
// lost, partial data beats dropped evidence.
func (p *Pipeline) Submit(sub Submission) (*Result, error) {
	if err := sub.validate(); err != nil {
		return &Result{Outcome: OutcomeRejected}, err
	}

	timestamp := sub.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	violation := &models.Violation{
		ID:              uuid.NewString(),
		Type:            models.ViolationType(sub.Type),
		CameraID:        sub.CameraID,
		Timestamp:       timestamp,
		ConfidenceScore: sub.ConfidenceScore,
		ThreatScore:     sub.ThreatScore,
		LocationLat:     sub.LocationLat,
		LocationLng:     sub.LocationLng,
		Status:          models.ViolationPending,
		CreatedAt:       time.Now(),
	}
	if sub.PlateNumber != "" {
		violation.PlateNumber = &sub.PlateNumber
	}
	if sub.VehicleType != "" {
		violation.VehicleType = &sub.VehicleType
	}
	if sub.EvidenceImageURL != "" {
		violation.EvidenceImageURL = &sub.EvidenceImageURL
	}
	violation.VideoTimestamp = sub.VideoTimestamp
	if sub.BoundingBox != nil {
		box := models.NewJSONB(sub.BoundingBox)
		violation.BoundingBox = &box
	}

	// Persist the base record. A store failure here is fatal for the request.
	if err := p.violations.Create(violation); err != nil {
		return nil, fmt.Errorf("failed to persist violation: %w", err)
	}

	result := &Result{Violation: violation}

	// Ledger update. Absent plates yield a nil snapshot and no mutation.
	vehicle, err := p.ledger.RecordViolation(sub.PlateNumber, timestamp)
	if err != nil {
		log.Printf("⚠️ Ledger update failed for violation %s (plate %s): %v", violation.ID, sub.PlateNumber, err)
		result.Outcome = OutcomePartiallyCompleted
		return result, nil
	}
	result.Vehicle = vehicle

	// Fine computation is pure; a nil snapshot counts as zero history.
	vehicleCount := 0
	if vehicle != nil {
		vehicleCount = vehicle.TotalViolations
	}
	fineAmount, err := p.calculator.Calculate(sub.Type, vehicleCount)
	if err != nil {
		log.Printf("⚠️ Fine calculation failed for violation %s: %v", violation.ID, err)
		result.Outcome = OutcomePartiallyCompleted
		return result, nil
	}

	// Attach the fine: the one and only fine write for this record. If it
	// fails the violation survives with null fine fields.
	fineGeneratedAt := time.Now()
	if err := p.violations.AttachFine(violation.ID, fineAmount, fineGeneratedAt); err != nil {
		log.Printf("⚠️ Failed to attach fine to violation %s: %v", violation.ID, err)
		result.Outcome = OutcomePartiallyCompleted
		return result, nil
	}

	// Re-read joined with camera/vehicle for broadcast.
	enriched, err := p.violations.GetByID(violation.ID)
	if err != nil || enriched == nil {
		log.Printf("⚠️ Failed to re-read violation %s for broadcast: %v", violation.ID, err)
		result.Outcome = OutcomePartiallyCompleted
		return result, nil
	}
	result.Violation = enriched

	// Event emission is best-effort: publish failures are logged and
	// swallowed, never a correctness dependency for the persisted record.
	if err := p.publisher.Publish(bus.TopicViolationNew, enriched); err != nil {
		log.Printf("⚠️ Failed to publish violation %s: %v", violation.ID, err)
	}
	finePayload := map[string]interface{}{
		"violationId": violation.ID,
		"fineAmount":  fineAmount,
		"plateNumber": violation.PlateNumber,
	}
	if err := p.publisher.Publish(bus.TopicFineGenerated, finePayload); err != nil {
		log.Printf("⚠️ Failed to publish fine for violation %s: %v", violation.ID, err)
	}

	// Alert evaluation swallows its own failures (see AlertPolicy).
	result.Alert = p.alertPolicy.Evaluate(enriched, vehicle)

	result.Outcome = OutcomeCompleted
	return result, nil
}

// allowed operator transitions for UpdateStatus
var operatorStatuses = map[models.ViolationStatus]bool{
	models.ViolationVerified:   true,
	models.ViolationRejected:   true,
	models.ViolationDispatched: true,
}

// UpdateStatus applies an operator verification decision, records the audit
// trail and republishes the record. Any of the three terminal statuses is
// accepted from any prior status; there is deliberately no transition guard.
// Returns (nil, nil) when the violation does not exist.
func (p *Pipeline) UpdateStatus(violationID string, status models.ViolationStatus, userID string) (*models.Violation, error) {
	if !operatorStatuses[status] {
		return nil, fmt.Errorf("%w: status must be verified, rejected or dispatched", ErrValidation)
	}

	violation, err := p.violations.UpdateStatus(violationID, status, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to update violation status: %w", err)
	}
	if violation == nil {
		return nil, nil
	}

	if err := p.audit.Record(&models.AuditLog{
		UserID:    userID,
		Action:    "UPDATE_STATUS",
		Entity:    "Violation",
		EntityID:  violationID,
		Details:   models.NewJSONB(map[string]interface{}{"status": status}),
		Timestamp: time.Now(),
	}); err != nil {
		log.Printf("⚠️ Failed to write audit log for violation %s: %v", violationID, err)
	}

	if err := p.publisher.Publish(bus.TopicViolationVerified, violation); err != nil {
		log.Printf("⚠️ Failed to publish status change for violation %s: %v", violationID, err)
	}
	return violation, nil
}
