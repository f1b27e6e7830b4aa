package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trafficgrid/backend/models"
)

// GetCameras handles GET /api/cameras
func (a *API) GetCameras(c *gin.Context) {
	cameras, err := a.repos.Cameras.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cameras"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras, "count": len(cameras)})
}

// GetCamera handles GET /api/cameras/:id
func (a *API) GetCamera(c *gin.Context) {
	camera, err := a.repos.Cameras.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch camera"})
		return
	}
	if camera == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found"})
		return
	}
	c.JSON(http.StatusOK, camera)
}

// RegisterCamera handles POST /api/cameras/register - enroll a new camera node
func (a *API) RegisterCamera(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		RTSPUrl     *string  `json:"rtspUrl"`
		LocationLat *float64 `json:"locationLat"`
		LocationLng *float64 `json:"locationLng"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	camera := &models.Camera{
		ID:            uuid.New().String(),
		Name:          req.Name,
		RTSPUrl:       req.RTSPUrl,
		Status:        models.CameraOnline,
		HealthStatus:  models.HealthHealthy,
		LastHeartbeat: time.Now(),
	}
	if req.LocationLat != nil {
		camera.LocationLat = *req.LocationLat
	}
	if req.LocationLng != nil {
		camera.LocationLng = *req.LocationLng
	}

	if err := a.repos.Cameras.Create(camera); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register camera"})
		return
	}

	if err := a.repos.Audit.Record(&models.AuditLog{
		UserID:    currentUserID(c),
		Action:    "REGISTER_CAMERA",
		Entity:    "Camera",
		EntityID:  camera.ID,
		Details:   models.NewJSONB(map[string]interface{}{"name": camera.Name}),
		Timestamp: time.Now(),
	}); err != nil {
		log.Printf("⚠️ Failed to write audit log for camera %s: %v", camera.ID, err)
	}

	log.Printf("📺 Camera registered: %s (%s)", camera.Name, camera.ID)
	c.JSON(http.StatusCreated, camera)
}

// Heartbeat handles POST /api/cameras/:id/heartbeat. Called by camera agents,
// not operators, so it sits outside the auth middleware.
func (a *API) Heartbeat(c *gin.Context) {
	var req struct {
		FPS          *float64 `json:"fps"`
		LatencyMs    *int     `json:"latencyMs"`
		FailureCount *int     `json:"failureCount"`
	}
	// An empty body is a valid keepalive.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid heartbeat payload"})
			return
		}
	}

	camera, err := a.heartbeats.Ping(c.Param("id"), req.FPS, req.LatencyMs, req.FailureCount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record heartbeat"})
		return
	}
	if camera == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "health": camera.HealthStatus})
}

// GetCameraStatus handles GET /api/cameras/status - fleet health roll-up for
// the dashboard header.
func (a *API) GetCameraStatus(c *gin.Context) {
	stats, err := a.repos.Cameras.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch camera status"})
		return
	}

	overall := "OPTIMAL"
	total := stats.Online + stats.Offline
	switch {
	case total > 0 && stats.Offline > total/2:
		overall = "CRITICAL"
	case stats.Offline > 0 || stats.Degraded > 0:
		overall = "WARNING"
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":   stats,
		"overall": overall,
	})
}
