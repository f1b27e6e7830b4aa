package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trafficgrid/backend/bus"
	"github.com/trafficgrid/backend/models"
)

// GetActiveAlerts handles GET /api/alerts/active - the operator's live queue.
// Returns ACTIVE and ACKNOWLEDGED alerts; RESOLVED ones drop off.
func (a *API) GetActiveAlerts(c *gin.Context) {
	alerts, err := a.repos.Alerts.ListActive()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// PatchAlertStatus handles PATCH /api/alerts/:id/status - acknowledge or
// resolve an alert. Severity is immutable after creation.
func (a *API) PatchAlertStatus(c *gin.Context) {
	var req struct {
		Status models.AlertStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if req.Status != models.AlertAcknowledged && req.Status != models.AlertResolved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be ACKNOWLEDGED or RESOLVED"})
		return
	}

	alert, err := a.repos.Alerts.UpdateStatus(c.Param("id"), req.Status, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	// Broadcast failure never blocks the state change.
	if err := a.publisher.Publish(bus.TopicAlertStatusChange, alert); err != nil {
		log.Printf("⚠️ Failed to publish alert status change for %s: %v", alert.ID, err)
	}
	c.JSON(http.StatusOK, alert)
}
