package repository

import (
	"errors"
	"time"

	"github.com/trafficgrid/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repositories bundles the gorm-backed implementations for wiring in main.
type Repositories struct {
	Violations ViolationRepository
	Vehicles   VehicleRepository
	FineRules  FineRuleRepository
	Alerts     AlertRepository
	Cameras    CameraRepository
	Audit      AuditRepository
}

// New builds the full repository set over one database handle.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Violations: &gormViolationRepo{db: db},
		Vehicles:   &gormVehicleRepo{db: db},
		FineRules:  &gormFineRuleRepo{db: db},
		Alerts:     &gormAlertRepo{db: db},
		Cameras:    &gormCameraRepo{db: db},
		Audit:      &gormAuditRepo{db: db},
	}
}

type gormViolationRepo struct {
	db *gorm.DB
}

func (r *gormViolationRepo) Create(v *models.Violation) error {
	return r.db.Create(v).Error
}

func (r *gormViolationRepo) AttachFine(id string, amount int64, at time.Time) error {
	return r.db.Model(&models.Violation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"fine_amount":       amount,
		"fine_status":       models.FinePending,
		"fine_generated_at": at,
	}).Error
}

func (r *gormViolationRepo) GetByID(id string) (*models.Violation, error) {
	var violation models.Violation
	err := r.db.Preload("Camera").Preload("Vehicle").First(&violation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &violation, nil
}

func (r *gormViolationRepo) List(f ViolationFilter) ([]models.Violation, int64, error) {
	query := r.db.Model(&models.Violation{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.CameraID != "" {
		query = query.Where("camera_id = ?", f.CameraID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var violations []models.Violation
	err := query.Preload("Camera").
		Order("created_at DESC").
		Limit(limit).Offset(f.Offset).
		Find(&violations).Error
	if err != nil {
		return nil, 0, err
	}
	return violations, total, nil
}

func (r *gormViolationRepo) UpdateStatus(id string, status models.ViolationStatus, userID string, at time.Time) (*models.Violation, error) {
	res := r.db.Model(&models.Violation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"verified_by": userID,
		"verified_at": at,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(id)
}

func (r *gormViolationRepo) Count() (int64, error) {
	var total int64
	err := r.db.Model(&models.Violation{}).Count(&total).Error
	return total, err
}

func (r *gormViolationRepo) CountSince(t time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&models.Violation{}).Where("created_at >= ?", t).Count(&total).Error
	return total, err
}

func (r *gormViolationRepo) RecentConfidence(limit int) ([]float64, error) {
	var scores []float64
	err := r.db.Model(&models.Violation{}).
		Order("created_at DESC").Limit(limit).
		Pluck("confidence_score", &scores).Error
	return scores, err
}

type gormVehicleRepo struct {
	db *gorm.DB
}

// RecordViolation increments the plate's count inside one transaction with a
// row lock, so concurrent detections for the same plate serialize instead of
// overwriting each other's read.
func (r *gormVehicleRepo) RecordViolation(plate string, at time.Time) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.Transaction(func(tx *gorm.DB) error {
		seed := models.Vehicle{PlateNumber: plate, RiskLevel: models.RiskLow}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plate_number"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&vehicle, "plate_number = ?", plate).Error; err != nil {
			return err
		}

		vehicle.TotalViolations++
		vehicle.LastViolationAt = &at
		if vehicle.IsBlacklisted {
			vehicle.RiskLevel = models.RiskCritical
		} else {
			vehicle.RiskLevel = models.RiskLevelForCount(vehicle.TotalViolations)
		}

		return tx.Model(&models.Vehicle{}).Where("plate_number = ?", plate).Updates(map[string]interface{}{
			"total_violations":  vehicle.TotalViolations,
			"risk_level":        vehicle.RiskLevel,
			"last_violation_at": at,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *gormVehicleRepo) GetByPlate(plate string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.First(&vehicle, "plate_number = ?", plate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *gormVehicleRepo) GetWithViolations(plate string, recent int) (*models.Vehicle, error) {
	if recent <= 0 {
		recent = 10
	}
	var vehicle models.Vehicle
	err := r.db.Preload("Violations", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC").Limit(recent)
	}).First(&vehicle, "plate_number = ?", plate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *gormVehicleRepo) SetBlacklist(plate string, blacklisted bool) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.Transaction(func(tx *gorm.DB) error {
		seed := models.Vehicle{PlateNumber: plate, RiskLevel: models.RiskLow}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plate_number"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&vehicle, "plate_number = ?", plate).Error; err != nil {
			return err
		}

		vehicle.IsBlacklisted = blacklisted
		if blacklisted {
			vehicle.RiskLevel = models.RiskCritical
		} else {
			vehicle.RiskLevel = models.RiskLevelForCount(vehicle.TotalViolations)
		}

		return tx.Model(&models.Vehicle{}).Where("plate_number = ?", plate).Updates(map[string]interface{}{
			"is_blacklisted": vehicle.IsBlacklisted,
			"risk_level":     vehicle.RiskLevel,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

type gormFineRuleRepo struct {
	db *gorm.DB
}

func (r *gormFineRuleRepo) GetByType(violationType string) (*models.FineRule, error) {
	var rule models.FineRule
	err := r.db.First(&rule, "violation_type = ?", violationType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *gormFineRuleRepo) Upsert(rule *models.FineRule) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "violation_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"base_amount", "repeat_multiplier"}),
	}).Create(rule).Error
}

type gormAlertRepo struct {
	db *gorm.DB
}

func (r *gormAlertRepo) Create(a *models.Alert) error {
	return r.db.Create(a).Error
}

func (r *gormAlertRepo) ListActive() ([]models.Alert, error) {
	var alerts []models.Alert
	err := r.db.Where("status IN ?", []models.AlertStatus{models.AlertActive, models.AlertAcknowledged}).
		Preload("Violation").
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

func (r *gormAlertRepo) UpdateStatus(id string, status models.AlertStatus, at time.Time) (*models.Alert, error) {
	updates := map[string]interface{}{"status": status}
	switch status {
	case models.AlertAcknowledged:
		updates["acknowledged_at"] = at
	case models.AlertResolved:
		updates["resolved_at"] = at
	}

	res := r.db.Model(&models.Alert{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var alert models.Alert
	if err := r.db.Preload("Violation").First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

type gormCameraRepo struct {
	db *gorm.DB
}

func (r *gormCameraRepo) Create(cam *models.Camera) error {
	return r.db.Create(cam).Error
}

func (r *gormCameraRepo) GetByID(id string) (*models.Camera, error) {
	var camera models.Camera
	err := r.db.First(&camera, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &camera, nil
}

func (r *gormCameraRepo) List() ([]models.Camera, error) {
	var cameras []models.Camera
	err := r.db.Order("created_at DESC").Find(&cameras).Error
	return cameras, err
}

func (r *gormCameraRepo) UpdateHeartbeat(id string, hb Heartbeat) (*models.Camera, error) {
	updates := map[string]interface{}{
		"last_heartbeat": hb.At,
		"status":         models.CameraOnline,
		"health_status":  hb.Health,
	}
	if hb.FPS != nil {
		updates["current_fps"] = *hb.FPS
	}
	if hb.LatencyMs != nil {
		updates["latency_ms"] = *hb.LatencyMs
	}
	if hb.FailureCount != nil {
		updates["failure_count"] = *hb.FailureCount
	}

	res := r.db.Model(&models.Camera{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(id)
}

func (r *gormCameraRepo) ListStaleOnline(cutoff time.Time) ([]models.Camera, error) {
	var cameras []models.Camera
	err := r.db.Where("status = ? AND last_heartbeat < ?", models.CameraOnline, cutoff).
		Find(&cameras).Error
	return cameras, err
}

func (r *gormCameraRepo) MarkOffline(id string) error {
	return r.db.Model(&models.Camera{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.CameraOffline,
		"health_status": models.HealthOffline,
	}).Error
}

func (r *gormCameraRepo) Stats() (CameraStats, error) {
	var stats CameraStats
	if err := r.db.Model(&models.Camera{}).Where("status = ?", models.CameraOnline).Count(&stats.Online).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.Camera{}).Where("status = ?", models.CameraOffline).Count(&stats.Offline).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.Camera{}).Where("health_status = ?", models.HealthDegraded).Count(&stats.Degraded).Error; err != nil {
		return stats, err
	}

	var avgs struct {
		AvgFPS     *float64
		AvgLatency *float64
	}
	err := r.db.Model(&models.Camera{}).
		Select("AVG(current_fps) as avg_fps, AVG(latency_ms) as avg_latency").
		Scan(&avgs).Error
	if err != nil {
		return stats, err
	}
	if avgs.AvgFPS != nil {
		stats.AvgFPS = *avgs.AvgFPS
	}
	if avgs.AvgLatency != nil {
		stats.AvgLatency = *avgs.AvgLatency
	}
	return stats, nil
}

func (r *gormCameraRepo) CountOnline() (int64, error) {
	var total int64
	err := r.db.Model(&models.Camera{}).Where("status = ?", models.CameraOnline).Count(&total).Error
	return total, err
}

type gormAuditRepo struct {
	db *gorm.DB
}

func (r *gormAuditRepo) Record(entry *models.AuditLog) error {
	return r.db.Create(entry).Error
}
