package enforcement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

func testRules() *repository.MemFineRuleRepo {
	return repository.NewMemFineRuleRepo(
		models.FineRule{ViolationType: "NO_HELMET", BaseAmount: 500, RepeatMultiplier: 1.5},
		models.FineRule{ViolationType: "RED_LIGHT", BaseAmount: 1000, RepeatMultiplier: 2.0},
		models.FineRule{ViolationType: "WRONG_WAY", BaseAmount: 1500, RepeatMultiplier: 2.5},
	)
}

func TestApplyRule(t *testing.T) {
	t.Parallel()

	noHelmet := &models.FineRule{ViolationType: "NO_HELMET", BaseAmount: 500, RepeatMultiplier: 1.5}
	redLight := &models.FineRule{ViolationType: "RED_LIGHT", BaseAmount: 1000, RepeatMultiplier: 2.0}

	tests := []struct {
		name  string
		rule  *models.FineRule
		count int
		want  int64
	}{
		{"first offense pays base", noHelmet, 0, 500},
		{"below repeat threshold pays base", noHelmet, 2, 500},
		{"repeat offender pays multiplied", noHelmet, 3, 750},
		{"habitual offender pays surcharge", noHelmet, 10, 1125},
		{"habitual well past threshold", noHelmet, 25, 1125},
		{"red light repeat", redLight, 3, 2000},
		{"red light habitual", redLight, 10, 3000},
		{"nil rule yields zero", nil, 5, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ApplyRule(tt.rule, tt.count))
		})
	}
}

func TestApplyRuleFloorsFractionalAmounts(t *testing.T) {
	t.Parallel()

	// 333 * 1.5 = 499.5, floored to 499.
	rule := &models.FineRule{ViolationType: "NO_HELMET", BaseAmount: 333, RepeatMultiplier: 1.5}
	assert.Equal(t, int64(499), ApplyRule(rule, 3))
}

func TestApplyRuleDefaultsZeroMultiplier(t *testing.T) {
	t.Parallel()

	rule := &models.FineRule{ViolationType: "OVERSPEED", BaseAmount: 1200}
	assert.Equal(t, int64(1200), ApplyRule(rule, 4))
	assert.Equal(t, int64(1800), ApplyRule(rule, 10))
}

func TestCalculatorUnknownTypeYieldsZero(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(NewRuleResolver(testRules()))
	amount, err := calc.Calculate("JAYWALKING", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), amount)
}

func TestCalculatorBreakdown(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(NewRuleResolver(testRules()))

	t.Run("nil vehicle is zero history", func(t *testing.T) {
		t.Parallel()
		b, err := calc.Breakdown("NO_HELMET", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(500), b.BaseAmount)
		assert.Equal(t, 1.0, b.AppliedMultiplier)
		assert.Equal(t, 0, b.VehicleViolationCount)
		assert.Equal(t, models.RiskLow, b.RiskLevel)
	})

	t.Run("habitual vehicle gets surcharge multiplier", func(t *testing.T) {
		t.Parallel()
		vehicle := &models.Vehicle{PlateNumber: "KA01XX0001", TotalViolations: 12, RiskLevel: models.RiskCritical}
		b, err := calc.Breakdown("WRONG_WAY", vehicle)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), b.BaseAmount)
		assert.Equal(t, 2.5, b.RepeatMultiplier)
		assert.InDelta(t, 3.75, b.AppliedMultiplier, 1e-9)
		assert.Equal(t, 12, b.VehicleViolationCount)
		assert.Equal(t, models.RiskCritical, b.RiskLevel)
	})

	t.Run("unknown type keeps vehicle context", func(t *testing.T) {
		t.Parallel()
		vehicle := &models.Vehicle{PlateNumber: "KA01XX0002", TotalViolations: 4, RiskLevel: models.RiskMedium}
		b, err := calc.Breakdown("JAYWALKING", vehicle)
		require.NoError(t, err)
		assert.Equal(t, int64(0), b.BaseAmount)
		assert.Equal(t, 1.0, b.AppliedMultiplier)
		assert.Equal(t, models.RiskMedium, b.RiskLevel)
	})
}
