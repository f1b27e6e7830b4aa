package enforcement

import (
	"github.com/trafficgrid/backend/models"
)

// Repeat-offender escalation thresholds on the vehicle's violation count.
const (
	repeatCountThreshold    = 3
	habitualCountThreshold  = 10
	habitualSurchargeFactor = 1.5
)

// ApplyRule computes the fine amount for one rule and one vehicle violation
// count. Pure function; flooring is integer truncation toward zero. A nil
// rule yields 0.
func ApplyRule(rule *models.FineRule, vehicleCount int) int64 {
	if rule == nil {
		return 0
	}
	multiplier := rule.RepeatMultiplier
	if multiplier == 0 {
		multiplier = 1.0
	}
	switch {
	case vehicleCount >= habitualCountThreshold:
		return int64(float64(rule.BaseAmount) * multiplier * habitualSurchargeFactor)
	case vehicleCount >= repeatCountThreshold:
		return int64(float64(rule.BaseAmount) * multiplier)
	default:
		return rule.BaseAmount
	}
}

// FineBreakdown explains a fine computation for audit transparency. It shows
// what the current rule and vehicle state would say now, which can diverge
// from the fine frozen at violation creation.
type FineBreakdown struct {
	BaseAmount            int64            `json:"baseAmount"`
	RepeatMultiplier      float64          `json:"repeatMultiplier"`
	AppliedMultiplier     float64          `json:"appliedMultiplier"`
	VehicleViolationCount int              `json:"vehicleViolationCount"`
	RiskLevel             models.RiskLevel `json:"riskLevel"`
}

// Calculator resolves the rule and applies the escalation. Safe to call
// independently of the pipeline for estimates.
type Calculator struct {
	resolver *RuleResolver
}

func NewCalculator(resolver *RuleResolver) *Calculator {
	return &Calculator{resolver: resolver}
}

// Calculate returns the fine amount for one violation type and vehicle
// count. Unknown types yield 0.
func (c *Calculator) Calculate(violationType string, vehicleCount int) (int64, error) {
	rule, err := c.resolver.Resolve(violationType)
	if err != nil {
		return 0, err
	}
	return ApplyRule(rule, vehicleCount), nil
}

// Breakdown returns the full calculation detail against current rule and
// vehicle state. A nil vehicle is treated as zero history at LOW risk.
func (c *Calculator) Breakdown(violationType string, vehicle *models.Vehicle) (*FineBreakdown, error) {
	rule, err := c.resolver.Resolve(violationType)
	if err != nil {
		return nil, err
	}

	b := &FineBreakdown{RiskLevel: models.RiskLow}
	if vehicle != nil {
		b.VehicleViolationCount = vehicle.TotalViolations
		b.RiskLevel = vehicle.RiskLevel
	}
	if rule == nil {
		b.AppliedMultiplier = 1.0
		return b, nil
	}

	b.BaseAmount = rule.BaseAmount
	b.RepeatMultiplier = rule.RepeatMultiplier
	multiplier := rule.RepeatMultiplier
	if multiplier == 0 {
		multiplier = 1.0
	}
	switch {
	case b.VehicleViolationCount >= habitualCountThreshold:
		b.AppliedMultiplier = multiplier * habitualSurchargeFactor
	case b.VehicleViolationCount >= repeatCountThreshold:
		b.AppliedMultiplier = multiplier
	default:
		b.AppliedMultiplier = 1.0
	}
	return b, nil
}
