package enforcement

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

// Alert policy thresholds. Fixed for now; candidates for configuration.
const (
	highConfidenceThreshold = 95.0
	mediumCountThreshold    = 5
)

// criticalTypes are the violation classes severe enough to alert on alone.
var criticalTypes = map[models.ViolationType]bool{
	models.ViolationWrongWay: true,
}

// AlertPolicy decides whether a newly created violation warrants an
// operator-facing alert and at what severity. Rules are priority-ordered;
// the first match wins.
type AlertPolicy struct {
	alerts    repository.AlertRepository
	publisher bus.Publisher
}

func NewAlertPolicy(alerts repository.AlertRepository, publisher bus.Publisher) *AlertPolicy {
	return &AlertPolicy{alerts: alerts, publisher: publisher}
}

// severityFor evaluates the rules in order and returns "" for no alert.
func severityFor(violation *models.Violation, vehicle *models.Vehicle) models.AlertSeverity {
	blacklisted := vehicle != nil && vehicle.IsBlacklisted
	criticalRisk := vehicle != nil && vehicle.RiskLevel == models.RiskCritical
	if criticalTypes[violation.Type] || blacklisted || criticalRisk {
		return models.AlertCritical
	}

	elevatedRisk := vehicle != nil &&
		(vehicle.RiskLevel == models.RiskHigh || vehicle.RiskLevel == models.RiskMedium)
	if violation.ConfidenceScore >= highConfidenceThreshold && elevatedRisk {
		return models.AlertHigh
	}

	if vehicle != nil && vehicle.TotalViolations >= mediumCountThreshold {
		return models.AlertMedium
	}
	return ""
}

// Evaluate is called at most once per new violation, after the ledger update
// and fine computation. On a match it persists one ACTIVE alert and
// publishes it. Failures here never propagate: the violation is already
// durable, so alert problems are a degraded-mode condition, not a pipeline
// failure.
func (p *AlertPolicy) Evaluate(violation *models.Violation, vehicle *models.Vehicle) *models.Alert {
	severity := severityFor(violation, vehicle)
	if severity == "" {
		return nil
	}

	alert := &models.Alert{
		ID:          uuid.NewString(),
		ViolationID: violation.ID,
		CameraID:    violation.CameraID,
		PlateNumber: violation.PlateNumber,
		Severity:    severity,
		Status:      models.AlertActive,
		CreatedAt:   time.Now(),
	}

	if err := p.alerts.Create(alert); err != nil {
		log.Printf("⚠️ Failed to create %s alert for violation %s: %v", severity, violation.ID, err)
		return nil
	}

	if err := p.publisher.Publish(bus.TopicAlertNew, alert); err != nil {
		log.Printf("⚠️ Failed to publish alert %s: %v", alert.ID, err)
	}
	return alert
}
