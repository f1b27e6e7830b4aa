package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const confidenceSampleSize = 100

// GetAnalyticsSummary handles GET /api/analytics - headline numbers
// for the dashboard overview panel.
func (a *API) GetAnalyticsSummary(c *gin.Context) {
	total, err := a.repos.Violations.Count()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := a.repos.Violations.CountSince(midnight)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}

	scores, err := a.repos.Violations.RecentConfidence(confidenceSampleSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}
	var avgConfidence float64
	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		avgConfidence = sum / float64(len(scores))
	}

	activeCameras, err := a.repos.Cameras.CountOnline()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalViolations": total,
		"violationsToday": today,
		"avgConfidence":   avgConfidence,
		"activeCameras":   activeCameras,
	})
}
