package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openpatrol/api/internal/model"
)

func TestParseQRPayload(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		serviceID    uint
		checkpointID uint
		wantKind     Kind
	}{
		{name: "valid", payload: "servicio:12:punto:34", serviceID: 12, checkpointID: 34},
		{name: "valid single digit", payload: "servicio:1:punto:2", serviceID: 1, checkpointID: 2},
		{name: "empty", payload: "", wantKind: KindInvalidPayload},
		{name: "wrong prefixes", payload: "foo:1:bar:2", wantKind: KindInvalidPayload},
		{name: "missing segment", payload: "servicio:1:punto", wantKind: KindInvalidPayload},
		{name: "extra segment", payload: "servicio:1:punto:2:extra", wantKind: KindInvalidPayload},
		{name: "leading zero service", payload: "servicio:01:punto:2", wantKind: KindInvalidPayload},
		{name: "leading zero checkpoint", payload: "servicio:1:punto:02", wantKind: KindInvalidPayload},
		{name: "zero id", payload: "servicio:0:punto:2", wantKind: KindInvalidPayload},
		{name: "negative id", payload: "servicio:-1:punto:2", wantKind: KindInvalidPayload},
		{name: "non numeric", payload: "servicio:abc:punto:2", wantKind: KindInvalidPayload},
		{name: "empty id", payload: "servicio::punto:2", wantKind: KindInvalidPayload},
		{name: "swapped prefixes", payload: "punto:1:servicio:2", wantKind: KindInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceID, checkpointID, err := ParseQRPayload(tt.payload)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.serviceID, serviceID)
			assert.Equal(t, tt.checkpointID, checkpointID)
		})
	}
}

func TestBuildQRPayloadRoundtrip(t *testing.T) {
	cp := &model.Checkpoint{ID: 34, ServiceID: 12}
	payload := BuildQRPayload(cp)
	assert.Equal(t, "servicio:12:punto:34", payload)

	serviceID, checkpointID, err := ParseQRPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, uint(12), serviceID)
	assert.Equal(t, uint(34), checkpointID)
}

func TestQRResolverResolve(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "north-depot")
	other := seedService(t, db, "south-depot")
	cp := seedCheckpoint(t, db, svc.ID, "gate-a", -34.6037, -58.3816)

	inactive := seedCheckpoint(t, db, svc.ID, "gate-b", -34.6, -58.38)
	require.NoError(t, db.Model(inactive).Update("active", false).Error)

	resolver := NewQRResolver(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		resolved, serviceID, err := resolver.Resolve(ctx, BuildQRPayload(cp))
		require.NoError(t, err)
		assert.Equal(t, cp.ID, resolved.ID)
		assert.Equal(t, svc.ID, serviceID)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, "garbage")
		assert.Equal(t, KindInvalidPayload, KindOf(err))
	})

	t.Run("checkpoint not found", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, "servicio:1:punto:9999")
		assert.Equal(t, KindCheckpointNotFound, KindOf(err))
	})

	t.Run("checkpoint inactive", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, BuildQRPayload(inactive))
		assert.Equal(t, KindCheckpointInactive, KindOf(err))
	})

	t.Run("service mismatch", func(t *testing.T) {
		mismatched := &model.Checkpoint{ID: cp.ID, ServiceID: other.ID}
		_, _, err := resolver.Resolve(ctx, BuildQRPayload(mismatched))
		assert.Equal(t, KindServiceMismatch, KindOf(err))
	})
}
