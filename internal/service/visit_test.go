package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

type visitFixture struct {
	db         *gorm.DB
	service    *model.Service
	other      *model.Service
	checkpoint *model.Checkpoint
	guard      *model.User
	visits     *VisitService
}

func newVisitFixture(t *testing.T) *visitFixture {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	other := seedService(t, db, "airport")
	cp := seedCheckpoint(t, db, svc.ID, "gate-a", -34.6037, -58.3816)
	guard := seedUser(t, db, "guard@harbor.test", model.RoleGuard, &svc.ID)

	return &visitFixture{
		db:         db,
		service:    svc,
		other:      other,
		checkpoint: cp,
		guard:      guard,
		visits:     NewVisitService(db, nil, NewGeofenceValidator(50)),
	}
}

func (f *visitFixture) request() model.VisitRequest {
	return model.VisitRequest{
		ServiceID:    f.service.ID,
		CheckpointID: f.checkpoint.ID,
		GuardID:      f.guard.ID,
		Latitude:     f.checkpoint.Latitude,
		Longitude:    f.checkpoint.Longitude,
	}
}

func TestRecordVisitSuccess(t *testing.T) {
	f := newVisitFixture(t)
	ctx := context.Background()

	visit, err := f.visits.RecordVisit(ctx, f.guard, f.request())
	require.NoError(t, err)

	assert.NotZero(t, visit.ID)
	assert.Equal(t, model.VisitNormal, visit.Kind)
	assert.True(t, visit.Synced)
	assert.WithinDuration(t, time.Now().UTC(), visit.OccurredAt, 5*time.Second)

	var count int64
	require.NoError(t, f.db.Model(&model.Visit{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordVisitKeepsClientTimestamp(t *testing.T) {
	f := newVisitFixture(t)

	captured := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Second)
	req := f.request()
	req.OccurredAt = &captured
	req.Kind = model.VisitObservation
	note := "broken lock on the side door"
	req.Note = &note

	visit, err := f.visits.RecordVisit(context.Background(), f.guard, req)
	require.NoError(t, err)
	assert.Equal(t, captured, visit.OccurredAt.UTC().Truncate(time.Second))
	assert.Equal(t, model.VisitObservation, visit.Kind)
	require.NotNil(t, visit.Note)
	assert.Equal(t, note, *visit.Note)
}

func TestRecordVisitOutOfRange(t *testing.T) {
	f := newVisitFixture(t)

	req := f.request()
	req.Latitude = f.checkpoint.Latitude + 0.01 // ~1.1 km away

	_, err := f.visits.RecordVisit(context.Background(), f.guard, req)
	require.Error(t, err)
	assert.Equal(t, KindOutOfRange, KindOf(err))

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Greater(t, svcErr.DistanceM, 50.0)
	assert.Equal(t, 50, svcErr.RadiusM)

	// Nothing stored
	var count int64
	require.NoError(t, f.db.Model(&model.Visit{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordVisitRejections(t *testing.T) {
	f := newVisitFixture(t)
	ctx := context.Background()

	t.Run("guard of another service", func(t *testing.T) {
		req := f.request()
		req.ServiceID = f.other.ID
		_, err := f.visits.RecordVisit(ctx, f.guard, req)
		assert.Equal(t, KindForbidden, KindOf(err))
	})

	t.Run("unknown checkpoint", func(t *testing.T) {
		req := f.request()
		req.CheckpointID = 9999
		_, err := f.visits.RecordVisit(ctx, f.guard, req)
		assert.Equal(t, KindCheckpointNotFound, KindOf(err))
	})

	t.Run("inactive checkpoint", func(t *testing.T) {
		require.NoError(t, f.db.Model(f.checkpoint).Update("active", false).Error)
		defer f.db.Model(f.checkpoint).Update("active", true)

		_, err := f.visits.RecordVisit(ctx, f.guard, f.request())
		assert.Equal(t, KindCheckpointInactive, KindOf(err))
	})

	t.Run("invalid kind", func(t *testing.T) {
		req := f.request()
		req.Kind = "stroll"
		_, err := f.visits.RecordVisit(ctx, f.guard, req)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("visit for non guard", func(t *testing.T) {
		supervisor := seedUser(t, f.db, "super@harbor.test", model.RoleSupervisor, &f.service.ID)
		req := f.request()
		req.GuardID = supervisor.ID
		admin := &model.User{Role: model.RoleAdmin}
		_, err := f.visits.RecordVisit(ctx, admin, req)
		assert.Equal(t, KindGuardNotEligible, KindOf(err))
	})
}

func TestSyncBatchIsolatesFailures(t *testing.T) {
	f := newVisitFixture(t)

	good1 := f.request()
	bad := f.request()
	bad.Latitude = f.checkpoint.Latitude + 0.01
	good2 := f.request()

	result := f.visits.SyncBatch(context.Background(), f.guard, []model.VisitRequest{good1, bad, good2})

	require.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 1)

	// Succeeded IDs follow submission order
	assert.Less(t, result.Succeeded[0], result.Succeeded[1])
	assert.Equal(t, bad.Latitude, result.Failed[0].Request.Latitude)
	assert.NotEmpty(t, result.Failed[0].Error)
	assert.Equal(t, string(KindOutOfRange), result.Failed[0].Code)

	var count int64
	require.NoError(t, f.db.Model(&model.Visit{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSyncBatchEmpty(t *testing.T) {
	f := newVisitFixture(t)

	result := f.visits.SyncBatch(context.Background(), f.guard, nil)
	assert.NotNil(t, result.Succeeded)
	assert.NotNil(t, result.Failed)
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestListVisitsScoping(t *testing.T) {
	f := newVisitFixture(t)
	ctx := context.Background()

	otherGuard := seedUser(t, f.db, "guard2@harbor.test", model.RoleGuard, &f.service.ID)

	_, err := f.visits.RecordVisit(ctx, f.guard, f.request())
	require.NoError(t, err)

	req2 := f.request()
	req2.GuardID = otherGuard.ID
	_, err = f.visits.RecordVisit(ctx, otherGuard, req2)
	require.NoError(t, err)

	t.Run("guard sees own visits only", func(t *testing.T) {
		visits, err := f.visits.ListVisits(ctx, f.guard, nil)
		require.NoError(t, err)
		require.Len(t, visits, 1)
		assert.Equal(t, f.guard.ID, visits[0].GuardID)
	})

	t.Run("supervisor sees whole service", func(t *testing.T) {
		supervisor := &model.User{Role: model.RoleSupervisor, ServiceID: &f.service.ID}
		visits, err := f.visits.ListVisits(ctx, supervisor, nil)
		require.NoError(t, err)
		assert.Len(t, visits, 2)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		admin := &model.User{Role: model.RoleAdmin}
		visits, err := f.visits.ListVisits(ctx, admin, nil)
		require.NoError(t, err)
		assert.Len(t, visits, 2)
	})

	t.Run("admin filters by service", func(t *testing.T) {
		admin := &model.User{Role: model.RoleAdmin}
		visits, err := f.visits.ListVisits(ctx, admin, &f.other.ID)
		require.NoError(t, err)
		assert.Empty(t, visits)
	})
}
