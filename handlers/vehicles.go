package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trafficgrid/backend/models"
)

const vehicleRecentViolations = 20

// GetVehicle handles GET /api/vehicles/:plate - ledger entry plus recent
// violations for that plate.
func (a *API) GetVehicle(c *gin.Context) {
	vehicle, err := a.repos.Vehicles.GetWithViolations(c.Param("plate"), vehicleRecentViolations)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicle"})
		return
	}
	if vehicle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// BlacklistVehicle handles POST /api/vehicles/:plate/blacklist
func (a *API) BlacklistVehicle(c *gin.Context) {
	a.setBlacklist(c, true)
}

// UnblacklistVehicle handles DELETE /api/vehicles/:plate/blacklist
func (a *API) UnblacklistVehicle(c *gin.Context) {
	a.setBlacklist(c, false)
}

func (a *API) setBlacklist(c *gin.Context, blacklisted bool) {
	vehicle, err := a.ledger.SetBlacklist(c.Param("plate"), blacklisted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update blacklist"})
		return
	}
	if vehicle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	if err := a.repos.Audit.Record(&models.AuditLog{
		UserID:    currentUserID(c),
		Action:    "SET_BLACKLIST",
		Entity:    "Vehicle",
		EntityID:  vehicle.PlateNumber,
		Details:   models.NewJSONB(map[string]interface{}{"blacklisted": blacklisted}),
		Timestamp: time.Now(),
	}); err != nil {
		log.Printf("⚠️ Failed to write audit log for vehicle %s: %v", vehicle.PlateNumber, err)
	}

	c.JSON(http.StatusOK, vehicle)
}
