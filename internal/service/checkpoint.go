package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// CheckpointService handles checkpoint directory management. The active
// checkpoint list of each service is cached in Redis and invalidated on
// every write.
type CheckpointService struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewCheckpointService creates a new checkpoint service. redisClient may be
// nil; caching is then skipped.
func NewCheckpointService(db *gorm.DB, redisClient *redis.Client) *CheckpointService {
	return &CheckpointService{db: db, redis: redisClient}
}

// Create validates and stores a new checkpoint. The QR token is generated
// server-side and never supplied by the client.
func (s *CheckpointService) Create(ctx context.Context, req model.CreateCheckpointRequest) (*model.Checkpoint, error) {
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	if err := validateRadius(req.ValidationRadiusM); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Service{}).Where("id = ?", req.ServiceID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, newError(KindNotFound, "service %d not found", req.ServiceID)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	checkpoint := model.Checkpoint{
		ServiceID:         req.ServiceID,
		Name:              req.Name,
		Description:       req.Description,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		ValidationRadiusM: req.ValidationRadiusM,
		QRCode:            newQRToken(),
		Active:            active,
	}

	if err := s.db.WithContext(ctx).Create(&checkpoint).Error; err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, checkpoint.ServiceID)
	return &checkpoint, nil
}

// Update applies the non-nil fields of req to a checkpoint.
func (s *CheckpointService) Update(ctx context.Context, id uint, req model.UpdateCheckpointRequest) (*model.Checkpoint, error) {
	checkpoint, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldServiceID := checkpoint.ServiceID

	if req.Latitude != nil || req.Longitude != nil {
		lat, lon := checkpoint.Latitude, checkpoint.Longitude
		if req.Latitude != nil {
			lat = *req.Latitude
		}
		if req.Longitude != nil {
			lon = *req.Longitude
		}
		if err := validateCoordinates(lat, lon); err != nil {
			return nil, err
		}
		checkpoint.Latitude, checkpoint.Longitude = lat, lon
	}

	if req.ValidationRadiusM != nil {
		if err := validateRadius(req.ValidationRadiusM); err != nil {
			return nil, err
		}
		checkpoint.ValidationRadiusM = req.ValidationRadiusM
	}

	if req.ServiceID != nil && *req.ServiceID != checkpoint.ServiceID {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Service{}).Where("id = ?", *req.ServiceID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, newError(KindNotFound, "service %d not found", *req.ServiceID)
		}
		checkpoint.ServiceID = *req.ServiceID
	}

	if req.Name != nil {
		checkpoint.Name = *req.Name
	}
	if req.Description != nil {
		checkpoint.Description = *req.Description
	}
	if req.Active != nil {
		checkpoint.Active = *req.Active
	}

	if err := s.db.WithContext(ctx).Save(checkpoint).Error; err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, oldServiceID)
	if checkpoint.ServiceID != oldServiceID {
		s.invalidateCache(ctx, checkpoint.ServiceID)
	}
	return checkpoint, nil
}

// Get returns a checkpoint by ID.
func (s *CheckpointService) Get(ctx context.Context, id uint) (*model.Checkpoint, error) {
	var checkpoint model.Checkpoint
	if err := s.db.WithContext(ctx).First(&checkpoint, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindCheckpointNotFound, "checkpoint %d not found", id)
		}
		return nil, err
	}
	return &checkpoint, nil
}

// List returns checkpoints, optionally scoped to a service and filtered to
// active ones. Service names are filled in best-effort.
func (s *CheckpointService) List(ctx context.Context, serviceID *uint, activeOnly bool) ([]model.CheckpointInfo, error) {
	query := s.db.WithContext(ctx).Model(&model.Checkpoint{})
	if serviceID != nil {
		query = query.Where("service_id = ?", *serviceID)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var checkpoints []model.Checkpoint
	if err := query.Order("name ASC").Find(&checkpoints).Error; err != nil {
		return nil, err
	}

	names := s.serviceNames(ctx, checkpoints)

	infos := make([]model.CheckpointInfo, 0, len(checkpoints))
	for _, cp := range checkpoints {
		info := model.CheckpointInfo{Checkpoint: cp}
		if name, ok := names[cp.ServiceID]; ok {
			info.ServiceName = &name
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ListActiveCached returns the active checkpoints of a service, served from
// the Redis cache when possible.
func (s *CheckpointService) ListActiveCached(ctx context.Context, serviceID uint) ([]model.Checkpoint, error) {
	key := checkpointCacheKey(serviceID)
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, key).Result(); err == nil {
			var checkpoints []model.Checkpoint
			if err := json.Unmarshal([]byte(data), &checkpoints); err == nil {
				return checkpoints, nil
			}
		}
	}

	var checkpoints []model.Checkpoint
	err := s.db.WithContext(ctx).
		Where("service_id = ? AND active = ?", serviceID, true).
		Order("name ASC").
		Find(&checkpoints).Error
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(checkpoints); err == nil {
			s.redis.Set(ctx, key, data, 10*time.Minute)
		}
	}
	return checkpoints, nil
}

// Delete removes a checkpoint. One nothing ever visited is removed outright;
// one with recorded visits is only deactivated, so the row stays queryable,
// its QR resolves as inactive and the visit history stays intact.
func (s *CheckpointService) Delete(ctx context.Context, id uint) error {
	checkpoint, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var visitCount int64
	if err := s.db.WithContext(ctx).Model(&model.Visit{}).
		Where("checkpoint_id = ?", id).Count(&visitCount).Error; err != nil {
		return err
	}

	if visitCount == 0 {
		err = s.db.WithContext(ctx).Unscoped().Delete(&model.Checkpoint{}, id).Error
	} else {
		err = s.db.WithContext(ctx).Model(&model.Checkpoint{}).
			Where("id = ?", id).Update("active", false).Error
	}
	if err != nil {
		return err
	}

	s.invalidateCache(ctx, checkpoint.ServiceID)
	return nil
}

// serviceNames loads the names of the services the checkpoints belong to.
func (s *CheckpointService) serviceNames(ctx context.Context, checkpoints []model.Checkpoint) map[uint]string {
	ids := make([]uint, 0, len(checkpoints))
	seen := map[uint]bool{}
	for _, cp := range checkpoints {
		if !seen[cp.ServiceID] {
			seen[cp.ServiceID] = true
			ids = append(ids, cp.ServiceID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var services []model.Service
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&services).Error; err != nil {
		return nil
	}

	names := make(map[uint]string, len(services))
	for _, svc := range services {
		names[svc.ID] = svc.Name
	}
	return names
}

func (s *CheckpointService) invalidateCache(ctx context.Context, serviceID uint) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, checkpointCacheKey(serviceID))
}

func checkpointCacheKey(serviceID uint) string {
	return fmt.Sprintf("patrol:checkpoints:%d", serviceID)
}

// newQRToken generates a unique token for printed QR material.
func newQRToken() string {
	u := uuid.New()
	return "ACRUX-" + hex.EncodeToString(u[:8])
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return newError(KindInvalidArgument, "latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return newError(KindInvalidArgument, "longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

func validateRadius(radius *int) error {
	if radius == nil {
		return nil
	}
	if *radius < model.MinValidationRadius || *radius > model.MaxValidationRadius {
		return newError(KindInvalidArgument, "validation radius %d out of range [%d, %d]",
			*radius, model.MinValidationRadius, model.MaxValidationRadius)
	}
	return nil
}
