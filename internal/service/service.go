package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// Minimum round interval in minutes
const minRoundInterval = 5

// ServiceStats summarizes a service for dashboards.
type ServiceStats struct {
	ServiceID       uint  `json:"service_id"`
	CheckpointCount int64 `json:"checkpoint_count"`
	GuardCount      int64 `json:"guard_count"`
	VisitsToday     int64 `json:"visits_today"`
}

// PatrolServiceManager handles patrol service (site contract) management.
type PatrolServiceManager struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewPatrolServiceManager creates a new service manager. redisClient may be
// nil; name caching is then skipped.
func NewPatrolServiceManager(db *gorm.DB, redisClient *redis.Client) *PatrolServiceManager {
	return &PatrolServiceManager{db: db, redis: redisClient}
}

// Create validates and stores a new patrol service.
func (m *PatrolServiceManager) Create(ctx context.Context, req model.CreateServiceRequest) (*model.Service, error) {
	if err := validateSchedule(req.OperatingDays, req.StartTime, req.EndTime, req.RoundIntervalMinutes); err != nil {
		return nil, err
	}

	var count int64
	if err := m.db.WithContext(ctx).Model(&model.Service{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, newError(KindConflict, "service name %q already in use", req.Name)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	service := model.Service{
		Name:                 req.Name,
		Description:          req.Description,
		OperatingDays:        model.WeekdayList(req.OperatingDays),
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		RoundIntervalMinutes: req.RoundIntervalMinutes,
		Active:               active,
	}

	if err := m.db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

// Update applies the non-nil fields of req to a service.
func (m *PatrolServiceManager) Update(ctx context.Context, id uint, req model.UpdateServiceRequest) (*model.Service, error) {
	service, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	days := []int(service.OperatingDays)
	if req.OperatingDays != nil {
		days = *req.OperatingDays
	}
	start, end := service.StartTime, service.EndTime
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	interval := service.RoundIntervalMinutes
	if req.RoundIntervalMinutes != nil {
		interval = *req.RoundIntervalMinutes
	}
	if err := validateSchedule(days, start, end, interval); err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != service.Name {
		var count int64
		if err := m.db.WithContext(ctx).Model(&model.Service{}).
			Where("name = ? AND id <> ?", *req.Name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, newError(KindConflict, "service name %q already in use", *req.Name)
		}
		service.Name = *req.Name
	}

	if req.Description != nil {
		service.Description = *req.Description
	}
	service.OperatingDays = model.WeekdayList(days)
	service.StartTime = start
	service.EndTime = end
	service.RoundIntervalMinutes = interval
	if req.Active != nil {
		service.Active = *req.Active
	}

	if err := m.db.WithContext(ctx).Save(service).Error; err != nil {
		return nil, err
	}

	m.invalidateName(ctx, id)
	return service, nil
}

// Get returns a service by ID.
func (m *PatrolServiceManager) Get(ctx context.Context, id uint) (*model.Service, error) {
	var service model.Service
	if err := m.db.WithContext(ctx).First(&service, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "service %d not found", id)
		}
		return nil, err
	}
	return &service, nil
}

// List returns all services, optionally filtered to active ones.
func (m *PatrolServiceManager) List(ctx context.Context, activeOnly bool) ([]model.Service, error) {
	query := m.db.WithContext(ctx).Model(&model.Service{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var services []model.Service
	if err := query.Order("name ASC").Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

// Delete soft-deletes a service. A service that still has checkpoints must
// be emptied first.
func (m *PatrolServiceManager) Delete(ctx context.Context, id uint) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}

	var count int64
	if err := m.db.WithContext(ctx).Model(&model.Checkpoint{}).Where("service_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return newError(KindConflict, "service %d still has %d checkpoint(s)", id, count)
	}

	if err := m.db.WithContext(ctx).Delete(&model.Service{}, id).Error; err != nil {
		return err
	}

	m.invalidateName(ctx, id)
	return nil
}

// Stats returns per-service counters.
func (m *PatrolServiceManager) Stats(ctx context.Context, id uint) (*ServiceStats, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}

	stats := ServiceStats{ServiceID: id}
	db := m.db.WithContext(ctx)

	if err := db.Model(&model.Checkpoint{}).Where("service_id = ? AND active = ?", id, true).Count(&stats.CheckpointCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.User{}).
		Where("service_id = ? AND role = ? AND active = ?", id, model.RoleGuard, true).
		Count(&stats.GuardCount).Error; err != nil {
		return nil, err
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	if err := db.Model(&model.Visit{}).
		Where("service_id = ? AND occurred_at >= ?", id, startOfDay).
		Count(&stats.VisitsToday).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}

// Name returns a service name, best-effort, via a short-lived Redis cache.
// Returns nil when the service cannot be resolved.
func (m *PatrolServiceManager) Name(ctx context.Context, id uint) *string {
	key := serviceNameCacheKey(id)
	if m.redis != nil {
		if name, err := m.redis.Get(ctx, key).Result(); err == nil {
			return &name
		}
	}

	var service model.Service
	if err := m.db.WithContext(ctx).Select("name").First(&service, id).Error; err != nil {
		return nil
	}

	if m.redis != nil {
		m.redis.Set(ctx, key, service.Name, time.Hour)
	}
	return &service.Name
}

func (m *PatrolServiceManager) invalidateName(ctx context.Context, id uint) {
	if m.redis == nil {
		return
	}
	m.redis.Del(ctx, serviceNameCacheKey(id))
}

func serviceNameCacheKey(id uint) string {
	return fmt.Sprintf("patrol:service:name:%d", id)
}

// validateSchedule checks operating days, the HH:MM window and the round
// interval. StartTime after EndTime is allowed and means an overnight shift.
func validateSchedule(days []int, startTime, endTime string, intervalMinutes int) error {
	if len(days) == 0 {
		return newError(KindInvalidArgument, "operating days must not be empty")
	}
	seen := map[int]bool{}
	for _, d := range days {
		if d < 0 || d > 6 {
			return newError(KindInvalidArgument, "operating day %d out of range [0, 6]", d)
		}
		if seen[d] {
			return newError(KindInvalidArgument, "operating day %d repeated", d)
		}
		seen[d] = true
	}

	if _, err := time.Parse("15:04", startTime); err != nil {
		return newError(KindInvalidArgument, "invalid start time %q, expected HH:MM", startTime)
	}
	if _, err := time.Parse("15:04", endTime); err != nil {
		return newError(KindInvalidArgument, "invalid end time %q, expected HH:MM", endTime)
	}

	if intervalMinutes < minRoundInterval {
		return newError(KindInvalidArgument, "round interval %d below minimum %d minutes", intervalMinutes, minRoundInterval)
	}
	return nil
}
