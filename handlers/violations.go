package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trafficgrid/backend/enforcement"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

// toFloat tolerates numeric fields arriving as JSON numbers or strings,
// since upstream detectors submit both.
func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

// PostViolation handles POST /api/violations - detection ingestion from the AI service
func (a *API) PostViolation(c *gin.Context) {
	var req struct {
		Type             string      `json:"type"`
		PlateNumber      string      `json:"plateNumber"`
		VehicleType      string      `json:"vehicleType"`
		ConfidenceScore  interface{} `json:"confidenceScore"`
		ThreatScore      interface{} `json:"threatScore"`
		CameraID         string      `json:"cameraId"`
		LocationLat      *float64    `json:"locationLat"`
		LocationLng      *float64    `json:"locationLng"`
		EvidenceImageURL string      `json:"evidenceImageUrl"`
		VideoTimestamp   *float64    `json:"videoTimestampSeconds"`
		BoundingBox      interface{} `json:"boundingBox"`
		Timestamp        *string     `json:"timestamp"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.ConfidenceScore == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidenceScore is required"})
		return
	}
	confidence, ok := toFloat(req.ConfidenceScore)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidenceScore must be numeric"})
		return
	}

	var threat float64
	if req.ThreatScore != nil {
		threat, ok = toFloat(req.ThreatScore)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threatScore must be numeric"})
			return
		}
	}

	var timestamp time.Time
	if req.Timestamp != nil {
		if parsed, err := time.Parse(time.RFC3339, *req.Timestamp); err == nil {
			timestamp = parsed
		}
	}

	result, err := a.pipeline.Submit(enforcement.Submission{
		Type:             req.Type,
		PlateNumber:      req.PlateNumber,
		VehicleType:      req.VehicleType,
		ConfidenceScore:  confidence,
		ThreatScore:      threat,
		CameraID:         req.CameraID,
		LocationLat:      req.LocationLat,
		LocationLng:      req.LocationLng,
		EvidenceImageURL: req.EvidenceImageURL,
		VideoTimestamp:   req.VideoTimestamp,
		BoundingBox:      req.BoundingBox,
		Timestamp:        timestamp,
	})
	if err != nil {
		if errors.Is(err, enforcement.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create violation"})
		return
	}

	c.JSON(http.StatusCreated, result.Violation)
}

// GetViolations handles GET /api/violations - list with filters & pagination
func (a *API) GetViolations(c *gin.Context) {
	filter := repository.ViolationFilter{
		Status:   c.Query("status"),
		Type:     c.Query("type"),
		CameraID: c.Query("cameraId"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			filter.Limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	violations, total, err := a.repos.Violations.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch violations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"violations": violations,
		"total":      total,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

// GetViolation handles GET /api/violations/:id
func (a *API) GetViolation(c *gin.Context) {
	violation, err := a.repos.Violations.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch violation"})
		return
	}
	if violation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Violation not found"})
		return
	}
	c.JSON(http.StatusOK, violation)
}

// GetFineDetails handles GET /api/violations/:id/fine - the frozen fine plus
// what the current rule and vehicle state would say now. The breakdown is an
// audit aid, not a re-billing value.
func (a *API) GetFineDetails(c *gin.Context) {
	violation, err := a.repos.Violations.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch violation"})
		return
	}
	if violation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Violation not found"})
		return
	}

	var vehicle *models.Vehicle
	if violation.PlateNumber != nil {
		vehicle, err = a.ledger.Lookup(*violation.PlateNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicle"})
			return
		}
	}

	breakdown, err := a.calculator.Breakdown(string(violation.Type), vehicle)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute fine breakdown"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fineAmount":  violation.FineAmount,
		"fineStatus":  violation.FineStatus,
		"calculation": breakdown,
	})
}

// PatchViolationStatus handles PATCH /api/violations/:id/status - operator
// verification decision (verified/rejected/dispatched).
func (a *API) PatchViolationStatus(c *gin.Context) {
	var req struct {
		Status models.ViolationStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	violation, err := a.pipeline.UpdateStatus(c.Param("id"), req.Status, currentUserID(c))
	if err != nil {
		if errors.Is(err, enforcement.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update violation status"})
		return
	}
	if violation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Violation not found"})
		return
	}

	c.JSON(http.StatusOK, violation)
}

// GetViolationStats handles GET /api/violations/stats
func (a *API) GetViolationStats(c *gin.Context) {
	total, err := a.repos.Violations.Count()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}

	byStatus := make(map[string]int64)
	for _, status := range []models.ViolationStatus{
		models.ViolationPending, models.ViolationVerified,
		models.ViolationRejected, models.ViolationDispatched,
	} {
		_, count, err := a.repos.Violations.List(repository.ViolationFilter{Status: string(status), Limit: 1})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
			return
		}
		byStatus[string(status)] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    total,
		"byStatus": byStatus,
	})
}
