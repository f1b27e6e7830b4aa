package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/trafficgrid/backend/models"
)

// In-memory repository implementations. These are the unit-test seam for the
// enforcement pipeline and the service loops; the Err fields inject failures
// for partial-pipeline scenarios. All methods are safe for concurrent use.

// MemViolationRepo is an in-memory ViolationRepository.
type MemViolationRepo struct {
	mu         sync.Mutex
	violations map[string]*models.Violation

	CreateErr     error
	AttachFineErr error
	GetErr        error
}

func NewMemViolationRepo() *MemViolationRepo {
	return &MemViolationRepo{violations: make(map[string]*models.Violation)}
}

func (r *MemViolationRepo) Create(v *models.Violation) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.violations[v.ID] = &cp
	return nil
}

func (r *MemViolationRepo) AttachFine(id string, amount int64, at time.Time) error {
	if r.AttachFineErr != nil {
		return r.AttachFineErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.violations[id]; ok {
		status := models.FinePending
		v.FineAmount = &amount
		v.FineStatus = &status
		v.FineGeneratedAt = &at
	}
	return nil
}

func (r *MemViolationRepo) GetByID(id string) (*models.Violation, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.violations[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r *MemViolationRepo) List(f ViolationFilter) ([]models.Violation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Violation
	for _, v := range r.violations {
		if f.Status != "" && string(v.Status) != f.Status {
			continue
		}
		if f.Type != "" && string(v.Type) != f.Type {
			continue
		}
		if f.CameraID != "" && v.CameraID != f.CameraID {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *MemViolationRepo) UpdateStatus(id string, status models.ViolationStatus, userID string, at time.Time) (*models.Violation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.violations[id]
	if !ok {
		return nil, nil
	}
	v.Status = status
	v.VerifiedBy = &userID
	v.VerifiedAt = &at
	cp := *v
	return &cp, nil
}

func (r *MemViolationRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.violations)), nil
}

func (r *MemViolationRepo) CountSince(t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, v := range r.violations {
		if !v.CreatedAt.Before(t) {
			total++
		}
	}
	return total, nil
}

func (r *MemViolationRepo) RecentConfidence(limit int) ([]float64, error) {
	all, _, _ := r.List(ViolationFilter{})
	if len(all) > limit {
		all = all[:limit]
	}
	scores := make([]float64, 0, len(all))
	for _, v := range all {
		scores = append(scores, v.ConfidenceScore)
	}
	return scores, nil
}

// MemVehicleRepo is an in-memory VehicleRepository. RecordViolation holds the
// mutex across the whole read-modify-write, mirroring the row lock the
// Postgres implementation takes.
type MemVehicleRepo struct {
	mu       sync.Mutex
	vehicles map[string]*models.Vehicle

	RecordErr error
}

func NewMemVehicleRepo() *MemVehicleRepo {
	return &MemVehicleRepo{vehicles: make(map[string]*models.Vehicle)}
}

func (r *MemVehicleRepo) RecordViolation(plate string, at time.Time) (*models.Vehicle, error) {
	if r.RecordErr != nil {
		return nil, r.RecordErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[plate]
	if !ok {
		v = &models.Vehicle{PlateNumber: plate, RiskLevel: models.RiskLow}
		r.vehicles[plate] = v
	}
	v.TotalViolations++
	v.LastViolationAt = &at
	if v.IsBlacklisted {
		v.RiskLevel = models.RiskCritical
	} else {
		v.RiskLevel = models.RiskLevelForCount(v.TotalViolations)
	}
	cp := *v
	return &cp, nil
}

func (r *MemVehicleRepo) GetByPlate(plate string) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[plate]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r *MemVehicleRepo) GetWithViolations(plate string, recent int) (*models.Vehicle, error) {
	return r.GetByPlate(plate)
}

func (r *MemVehicleRepo) SetBlacklist(plate string, blacklisted bool) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[plate]
	if !ok {
		v = &models.Vehicle{PlateNumber: plate, RiskLevel: models.RiskLow}
		r.vehicles[plate] = v
	}
	v.IsBlacklisted = blacklisted
	if blacklisted {
		v.RiskLevel = models.RiskCritical
	} else {
		v.RiskLevel = models.RiskLevelForCount(v.TotalViolations)
	}
	cp := *v
	return &cp, nil
}

// MemFineRuleRepo is an in-memory FineRuleRepository keyed by exact type.
type MemFineRuleRepo struct {
	mu    sync.Mutex
	rules map[string]models.FineRule
}

func NewMemFineRuleRepo(rules ...models.FineRule) *MemFineRuleRepo {
	r := &MemFineRuleRepo{rules: make(map[string]models.FineRule)}
	for _, rule := range rules {
		r.rules[rule.ViolationType] = rule
	}
	return r
}

func (r *MemFineRuleRepo) GetByType(violationType string) (*models.FineRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[violationType]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (r *MemFineRuleRepo) Upsert(rule *models.FineRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ViolationType] = *rule
	return nil
}

// MemAlertRepo is an in-memory AlertRepository.
type MemAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*models.Alert

	CreateErr error
}

func NewMemAlertRepo() *MemAlertRepo {
	return &MemAlertRepo{alerts: make(map[string]*models.Alert)}
}

func (r *MemAlertRepo) Create(a *models.Alert) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *MemAlertRepo) ListActive() ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, a := range r.alerts {
		if a.Status == models.AlertActive || a.Status == models.AlertAcknowledged {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemAlertRepo) UpdateStatus(id string, status models.AlertStatus, at time.Time) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	a.Status = status
	switch status {
	case models.AlertAcknowledged:
		a.AcknowledgedAt = &at
	case models.AlertResolved:
		a.ResolvedAt = &at
	}
	cp := *a
	return &cp, nil
}

// All returns every stored alert, for test assertions.
func (r *MemAlertRepo) All() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, *a)
	}
	return out
}

// MemCameraRepo is an in-memory CameraRepository.
type MemCameraRepo struct {
	mu      sync.Mutex
	cameras map[string]*models.Camera
}

func NewMemCameraRepo(cameras ...models.Camera) *MemCameraRepo {
	r := &MemCameraRepo{cameras: make(map[string]*models.Camera)}
	for i := range cameras {
		cp := cameras[i]
		r.cameras[cp.ID] = &cp
	}
	return r
}

func (r *MemCameraRepo) Create(cam *models.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cam
	r.cameras[cam.ID] = &cp
	return nil
}

func (r *MemCameraRepo) GetByID(id string) (*models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cam, ok := r.cameras[id]
	if !ok {
		return nil, nil
	}
	cp := *cam
	return &cp, nil
}

func (r *MemCameraRepo) List() ([]models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		out = append(out, *cam)
	}
	return out, nil
}

func (r *MemCameraRepo) UpdateHeartbeat(id string, hb Heartbeat) (*models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cam, ok := r.cameras[id]
	if !ok {
		return nil, nil
	}
	cam.LastHeartbeat = hb.At
	cam.Status = models.CameraOnline
	cam.HealthStatus = hb.Health
	if hb.FPS != nil {
		cam.CurrentFPS = *hb.FPS
	}
	if hb.LatencyMs != nil {
		cam.LatencyMs = *hb.LatencyMs
	}
	if hb.FailureCount != nil {
		cam.FailureCount = *hb.FailureCount
	}
	cp := *cam
	return &cp, nil
}

func (r *MemCameraRepo) ListStaleOnline(cutoff time.Time) ([]models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Camera
	for _, cam := range r.cameras {
		if cam.Status == models.CameraOnline && cam.LastHeartbeat.Before(cutoff) {
			out = append(out, *cam)
		}
	}
	return out, nil
}

func (r *MemCameraRepo) MarkOffline(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cam, ok := r.cameras[id]; ok {
		cam.Status = models.CameraOffline
		cam.HealthStatus = models.HealthOffline
	}
	return nil
}

func (r *MemCameraRepo) Stats() (CameraStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats CameraStats
	var fpsSum, latencySum float64
	for _, cam := range r.cameras {
		switch cam.Status {
		case models.CameraOnline:
			stats.Online++
		case models.CameraOffline:
			stats.Offline++
		}
		if cam.HealthStatus == models.HealthDegraded {
			stats.Degraded++
		}
		fpsSum += cam.CurrentFPS
		latencySum += float64(cam.LatencyMs)
	}
	if n := len(r.cameras); n > 0 {
		stats.AvgFPS = fpsSum / float64(n)
		stats.AvgLatency = latencySum / float64(n)
	}
	return stats, nil
}

func (r *MemCameraRepo) CountOnline() (int64, error) {
	stats, _ := r.Stats()
	return stats.Online, nil
}

// MemAuditRepo is an in-memory AuditRepository.
type MemAuditRepo struct {
	mu      sync.Mutex
	Entries []models.AuditLog
}

func NewMemAuditRepo() *MemAuditRepo {
	return &MemAuditRepo{}
}

func (r *MemAuditRepo) Record(entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, *entry)
	return nil
}
