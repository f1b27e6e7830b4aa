package enforcement

import (
	"strings"
	"time"

	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

// Ledger tracks per-plate violation history. It is the only component that
// mutates Vehicle rows; the repository serializes the read-modify-write per
// plate so concurrent detections are never lost.
type Ledger struct {
	vehicles repository.VehicleRepository
}

func NewLedger(vehicles repository.VehicleRepository) *Ledger {
	return &Ledger{vehicles: vehicles}
}

// RecordViolation counts one real detection against the plate and re-derives
// its risk tier. Unidentified plates return (nil, nil): they do not accrue
// history. Must be called exactly once per detection.
func (l *Ledger) RecordViolation(plate string, at time.Time) (*models.Vehicle, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, nil
	}
	return l.vehicles.RecordViolation(plate, at)
}

// SetBlacklist is a separate operator action. Setting it forces the risk
// tier to CRITICAL; clearing it re-derives the tier from the count.
func (l *Ledger) SetBlacklist(plate string, blacklisted bool) (*models.Vehicle, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, nil
	}
	return l.vehicles.SetBlacklist(plate, blacklisted)
}

// Lookup returns the vehicle for a plate, or (nil, nil) if unseen.
func (l *Ledger) Lookup(plate string) (*models.Vehicle, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, nil
	}
	return l.vehicles.GetByPlate(plate)
}
