package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// NATS subject for stored visits
const SubjectVisitRecorded = "patrol.visit.recorded"

// VisitService runs the visit validation pipeline and persists visits.
// Visits are an append-only log; two near-simultaneous valid visits at the
// same checkpoint both succeed.
type VisitService struct {
	db       *gorm.DB
	nats     *nats.Conn
	geofence *GeofenceValidator
}

// NewVisitService creates a new visit service. natsConn may be nil; event
// publication is then skipped.
func NewVisitService(db *gorm.DB, natsConn *nats.Conn, geofence *GeofenceValidator) *VisitService {
	return &VisitService{
		db:       db,
		nats:     natsConn,
		geofence: geofence,
	}
}

// RecordVisit validates and stores a single visit:
// access check, checkpoint resolution, geofence check, guard eligibility,
// then insert with synced=true. OccurredAt defaults to server time.
func (s *VisitService) RecordVisit(ctx context.Context, identity *model.User, req model.VisitRequest) (*model.Visit, error) {
	if err := CanRecordVisit(identity, req.ServiceID); err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = model.VisitNormal
	}
	if !model.ValidVisitKind(kind) {
		return nil, newError(KindInvalidArgument, "invalid visit kind %q", kind)
	}

	checkpoint, err := s.resolveCheckpoint(ctx, req.CheckpointID, req.ServiceID)
	if err != nil {
		return nil, err
	}

	result := s.geofence.Validate(checkpoint, req.Latitude, req.Longitude)
	if !result.Within {
		return nil, errOutOfRange(result.DistanceM, result.RadiusM)
	}

	if err := s.verifyGuard(ctx, req.GuardID, req.ServiceID); err != nil {
		return nil, err
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	visit := model.Visit{
		ServiceID:         req.ServiceID,
		CheckpointID:      req.CheckpointID,
		GuardID:           req.GuardID,
		Kind:              kind,
		Note:              req.Note,
		ReportedLatitude:  req.Latitude,
		ReportedLongitude: req.Longitude,
		OccurredAt:        occurredAt,
		Synced:            true,
	}

	if err := s.db.WithContext(ctx).Create(&visit).Error; err != nil {
		return nil, err
	}

	s.publishVisitEvent(&visit, checkpoint, result.DistanceM)

	return &visit, nil
}

// SyncBatch replays offline-captured visits. Each item runs the full
// RecordVisit pipeline and is committed independently: one bad item never
// aborts the batch, and result order follows input order.
func (s *VisitService) SyncBatch(ctx context.Context, identity *model.User, requests []model.VisitRequest) model.SyncResult {
	result := model.SyncResult{
		Succeeded: []uint{},
		Failed:    []model.SyncFailure{},
	}

	for _, req := range requests {
		visit, err := s.RecordVisit(ctx, identity, req)
		if err != nil {
			result.Failed = append(result.Failed, model.SyncFailure{
				Request: req,
				Error:   err.Error(),
				Code:    string(KindOf(err)),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, visit.ID)
	}

	return result
}

// ListVisits returns recent visits scoped by role: guards see their own,
// supervisors their service, admins everything (optionally filtered).
func (s *VisitService) ListVisits(ctx context.Context, identity *model.User, serviceID *uint) ([]model.Visit, error) {
	query := s.db.WithContext(ctx).Model(&model.Visit{})

	switch identity.Role {
	case model.RoleGuard:
		query = query.Where("guard_id = ?", identity.ID)
	case model.RoleSupervisor:
		if identity.ServiceID == nil {
			return nil, newError(KindNoServiceAssigned, "supervisor has no service assigned")
		}
		query = query.Where("service_id = ?", *identity.ServiceID)
	case model.RoleAdmin:
		if serviceID != nil {
			query = query.Where("service_id = ?", *serviceID)
		}
	}

	var visits []model.Visit
	if err := query.Order("occurred_at DESC").Limit(100).Find(&visits).Error; err != nil {
		return nil, err
	}
	return visits, nil
}

// resolveCheckpoint loads a checkpoint by id and service id.
func (s *VisitService) resolveCheckpoint(ctx context.Context, checkpointID, serviceID uint) (*model.Checkpoint, error) {
	var checkpoint model.Checkpoint
	err := s.db.WithContext(ctx).
		Where("id = ? AND service_id = ?", checkpointID, serviceID).
		First(&checkpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindCheckpointNotFound, "checkpoint %d not found in service %d", checkpointID, serviceID)
		}
		return nil, err
	}

	if !checkpoint.Active {
		return nil, newError(KindCheckpointInactive, "checkpoint %d is inactive", checkpointID)
	}

	return &checkpoint, nil
}

// verifyGuard checks that guardID is an active guard of serviceID.
func (s *VisitService) verifyGuard(ctx context.Context, guardID, serviceID uint) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND service_id = ? AND role = ? AND active = ?", guardID, serviceID, model.RoleGuard, true).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return newError(KindGuardNotEligible, "guard %d not found or not an active guard of service %d", guardID, serviceID)
	}
	return nil
}

// publishVisitEvent publishes the stored visit to NATS, best-effort.
func (s *VisitService) publishVisitEvent(visit *model.Visit, checkpoint *model.Checkpoint, distance float64) {
	if s.nats == nil {
		return
	}

	event := model.VisitEvent{
		VisitID:        visit.ID,
		ServiceID:      visit.ServiceID,
		CheckpointID:   visit.CheckpointID,
		CheckpointName: checkpoint.Name,
		GuardID:        visit.GuardID,
		Kind:           visit.Kind,
		DistanceM:      distance,
		OccurredAt:     visit.OccurredAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[VisitService] Failed to marshal visit event: %v", err)
		return
	}

	if err := s.nats.Publish(SubjectVisitRecorded, data); err != nil {
		log.Printf("[VisitService] Failed to publish visit event: %v", err)
	}
}
