package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openpatrol/api/internal/model"
)

func TestCheckpointCreate(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	checkpoints := NewCheckpointService(db, nil)
	ctx := context.Background()

	cp, err := checkpoints.Create(ctx, model.CreateCheckpointRequest{
		Name:      "gate-a",
		Latitude:  -34.6037,
		Longitude: -58.3816,
		ServiceID: svc.ID,
	})
	require.NoError(t, err)

	assert.NotZero(t, cp.ID)
	assert.True(t, cp.Active)
	assert.True(t, strings.HasPrefix(cp.QRCode, "ACRUX-"))
	assert.Nil(t, cp.ValidationRadiusM)
}

func TestCheckpointCreateValidation(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	checkpoints := NewCheckpointService(db, nil)
	ctx := context.Background()

	base := model.CreateCheckpointRequest{
		Name:      "gate-a",
		Latitude:  -34.6,
		Longitude: -58.38,
		ServiceID: svc.ID,
	}

	t.Run("latitude out of range", func(t *testing.T) {
		req := base
		req.Latitude = 91
		_, err := checkpoints.Create(ctx, req)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("longitude out of range", func(t *testing.T) {
		req := base
		req.Longitude = -181
		_, err := checkpoints.Create(ctx, req)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("radius below minimum", func(t *testing.T) {
		req := base
		radius := 5
		req.ValidationRadiusM = &radius
		_, err := checkpoints.Create(ctx, req)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("radius above maximum", func(t *testing.T) {
		req := base
		radius := 501
		req.ValidationRadiusM = &radius
		_, err := checkpoints.Create(ctx, req)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("radius at bounds", func(t *testing.T) {
		for _, radius := range []int{10, 500} {
			req := base
			r := radius
			req.ValidationRadiusM = &r
			_, err := checkpoints.Create(ctx, req)
			assert.NoError(t, err)
		}
	})

	t.Run("unknown service", func(t *testing.T) {
		req := base
		req.ServiceID = 9999
		_, err := checkpoints.Create(ctx, req)
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestCheckpointUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	checkpoints := NewCheckpointService(db, nil)
	ctx := context.Background()

	cp, err := checkpoints.Create(ctx, model.CreateCheckpointRequest{
		Name:      "gate-a",
		Latitude:  -34.6,
		Longitude: -58.38,
		ServiceID: svc.ID,
	})
	require.NoError(t, err)

	name := "gate-a-renamed"
	radius := 75
	updated, err := checkpoints.Update(ctx, cp.ID, model.UpdateCheckpointRequest{
		Name:              &name,
		ValidationRadiusM: &radius,
	})
	require.NoError(t, err)
	assert.Equal(t, "gate-a-renamed", updated.Name)
	require.NotNil(t, updated.ValidationRadiusM)
	assert.Equal(t, 75, *updated.ValidationRadiusM)
	// QR token never changes on update
	assert.Equal(t, cp.QRCode, updated.QRCode)

	badLat := 95.0
	_, err = checkpoints.Update(ctx, cp.ID, model.UpdateCheckpointRequest{Latitude: &badLat})
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = checkpoints.Update(ctx, 9999, model.UpdateCheckpointRequest{})
	assert.Equal(t, KindCheckpointNotFound, KindOf(err))
}

func TestCheckpointListScoping(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	other := seedService(t, db, "airport")
	seedCheckpoint(t, db, svc.ID, "gate-a", -34.60, -58.38)
	seedCheckpoint(t, db, other.ID, "terminal", -34.62, -58.40)

	inactive := seedCheckpoint(t, db, svc.ID, "gate-b", -34.61, -58.39)
	require.NoError(t, db.Model(inactive).Update("active", false).Error)

	checkpoints := NewCheckpointService(db, nil)
	ctx := context.Background()

	all, err := checkpoints.List(ctx, nil, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := checkpoints.List(ctx, &svc.ID, false)
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
	for _, info := range scoped {
		require.NotNil(t, info.ServiceName)
		assert.Equal(t, "harbor", *info.ServiceName)
	}

	active, err := checkpoints.List(ctx, &svc.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "gate-a", active[0].Name)
}

func TestCheckpointDeleteKeepsVisits(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	cp := seedCheckpoint(t, db, svc.ID, "gate-a", -34.6037, -58.3816)
	guard := seedUser(t, db, "guard@harbor.test", model.RoleGuard, &svc.ID)

	visits := NewVisitService(db, nil, NewGeofenceValidator(50))
	ctx := context.Background()
	_, err := visits.RecordVisit(ctx, guard, model.VisitRequest{
		ServiceID:    svc.ID,
		CheckpointID: cp.ID,
		GuardID:      guard.ID,
		Latitude:     cp.Latitude,
		Longitude:    cp.Longitude,
	})
	require.NoError(t, err)

	checkpoints := NewCheckpointService(db, nil)
	require.NoError(t, checkpoints.Delete(ctx, cp.ID))

	// The row survives as inactive, so a later scan of its printed QR code
	// reports the checkpoint as retired rather than unknown
	got, err := checkpoints.Get(ctx, cp.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, _, err = NewQRResolver(db).Resolve(ctx, BuildQRPayload(cp))
	assert.Equal(t, KindCheckpointInactive, KindOf(err))

	// Visit history survives the soft delete
	var count int64
	require.NoError(t, db.Model(&model.Visit{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCheckpointDeleteUnvisitedIsHard(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	cp := seedCheckpoint(t, db, svc.ID, "gate-a", -34.60, -58.38)

	checkpoints := NewCheckpointService(db, nil)
	require.NoError(t, checkpoints.Delete(context.Background(), cp.ID))

	// No visits referenced it, so not even a soft-deleted row remains
	var count int64
	require.NoError(t, db.Unscoped().Model(&model.Checkpoint{}).Where("id = ?", cp.ID).Count(&count).Error)
	assert.Zero(t, count)
}
