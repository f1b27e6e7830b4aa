package enforcement

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

func TestLedgerCountsEveryDetection(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(repository.NewMemVehicleRepo())
	now := time.Now()

	for i := 1; i <= 4; i++ {
		vehicle, err := ledger.RecordViolation("DL01AB1234", now)
		require.NoError(t, err)
		require.NotNil(t, vehicle)
		assert.Equal(t, i, vehicle.TotalViolations)
	}
}

func TestLedgerRiskTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count int
		want  models.RiskLevel
	}{
		{1, models.RiskLow},
		{2, models.RiskLow},
		{3, models.RiskMedium},
		{5, models.RiskMedium},
		{6, models.RiskHigh},
		{10, models.RiskHigh},
		{11, models.RiskCritical},
		{40, models.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.RiskLevelForCount(tt.count), "count %d", tt.count)
	}

	// The tier derived at write time matches the count-based function.
	ledger := NewLedger(repository.NewMemVehicleRepo())
	var vehicle *models.Vehicle
	for i := 0; i < 6; i++ {
		vehicle, _ = ledger.RecordViolation("MH12CD5678", time.Now())
	}
	assert.Equal(t, models.RiskHigh, vehicle.RiskLevel)
}

func TestLedgerConcurrentDetectionsAllCounted(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(repository.NewMemVehicleRepo())
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.RecordViolation("KA05EF9012", time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	vehicle, err := ledger.Lookup("KA05EF9012")
	require.NoError(t, err)
	require.NotNil(t, vehicle)
	assert.Equal(t, n, vehicle.TotalViolations)
}

func TestLedgerIgnoresBlankPlates(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(repository.NewMemVehicleRepo())

	vehicle, err := ledger.RecordViolation("", time.Now())
	require.NoError(t, err)
	assert.Nil(t, vehicle)

	vehicle, err = ledger.RecordViolation("   ", time.Now())
	require.NoError(t, err)
	assert.Nil(t, vehicle)
}

func TestLedgerBlacklist(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(repository.NewMemVehicleRepo())
	_, err := ledger.RecordViolation("TN09GH3456", time.Now())
	require.NoError(t, err)

	vehicle, err := ledger.SetBlacklist("TN09GH3456", true)
	require.NoError(t, err)
	require.NotNil(t, vehicle)
	assert.True(t, vehicle.IsBlacklisted)
	assert.Equal(t, models.RiskCritical, vehicle.RiskLevel)

	// Clearing re-derives the tier from the count.
	vehicle, err = ledger.SetBlacklist("TN09GH3456", false)
	require.NoError(t, err)
	assert.False(t, vehicle.IsBlacklisted)
	assert.Equal(t, models.RiskLow, vehicle.RiskLevel)
}
