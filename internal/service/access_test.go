package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openpatrol/api/internal/model"
)

func TestCanRecordVisit(t *testing.T) {
	tests := []struct {
		name           string
		identity       *model.User
		visitServiceID uint
		wantKind       Kind
	}{
		{
			name:           "guard own service",
			identity:       &model.User{Role: model.RoleGuard, ServiceID: uintPtr(1)},
			visitServiceID: 1,
		},
		{
			name:           "guard other service",
			identity:       &model.User{Role: model.RoleGuard, ServiceID: uintPtr(1)},
			visitServiceID: 2,
			wantKind:       KindForbidden,
		},
		{
			name:           "guard without service",
			identity:       &model.User{Role: model.RoleGuard},
			visitServiceID: 1,
			wantKind:       KindNoServiceAssigned,
		},
		{
			name:           "supervisor own service",
			identity:       &model.User{Role: model.RoleSupervisor, ServiceID: uintPtr(3)},
			visitServiceID: 3,
		},
		{
			name:           "admin any service",
			identity:       &model.User{Role: model.RoleAdmin},
			visitServiceID: 7,
		},
		{
			name:           "unknown role",
			identity:       &model.User{Role: "intern"},
			visitServiceID: 1,
			wantKind:       KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanRecordVisit(tt.identity, tt.visitServiceID)
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckpointScope(t *testing.T) {
	t.Run("guard pinned to own service", func(t *testing.T) {
		scope, err := CheckpointScope(&model.User{Role: model.RoleGuard, ServiceID: uintPtr(4)}, uintPtr(9))
		require.NoError(t, err)
		require.NotNil(t, scope)
		assert.Equal(t, uint(4), *scope)
	})

	t.Run("guard without service", func(t *testing.T) {
		_, err := CheckpointScope(&model.User{Role: model.RoleGuard}, nil)
		assert.Equal(t, KindNoServiceAssigned, KindOf(err))
	})

	t.Run("admin gets requested scope", func(t *testing.T) {
		scope, err := CheckpointScope(&model.User{Role: model.RoleAdmin}, uintPtr(9))
		require.NoError(t, err)
		require.NotNil(t, scope)
		assert.Equal(t, uint(9), *scope)
	})

	t.Run("admin unscoped", func(t *testing.T) {
		scope, err := CheckpointScope(&model.User{Role: model.RoleAdmin}, nil)
		require.NoError(t, err)
		assert.Nil(t, scope)
	})
}

func TestAlertScope(t *testing.T) {
	t.Run("guard denied", func(t *testing.T) {
		_, err := AlertScope(&model.User{Role: model.RoleGuard, ServiceID: uintPtr(1)}, nil)
		assert.Equal(t, KindForbidden, KindOf(err))
	})

	t.Run("supervisor pinned to own service", func(t *testing.T) {
		scope, err := AlertScope(&model.User{Role: model.RoleSupervisor, ServiceID: uintPtr(2)}, uintPtr(5))
		require.NoError(t, err)
		require.NotNil(t, scope)
		assert.Equal(t, uint(2), *scope)
	})

	t.Run("supervisor without service", func(t *testing.T) {
		_, err := AlertScope(&model.User{Role: model.RoleSupervisor}, nil)
		assert.Equal(t, KindNoServiceAssigned, KindOf(err))
	})

	t.Run("admin keeps filter", func(t *testing.T) {
		scope, err := AlertScope(&model.User{Role: model.RoleAdmin}, uintPtr(5))
		require.NoError(t, err)
		require.NotNil(t, scope)
		assert.Equal(t, uint(5), *scope)
	})
}

func TestManagementAndReportPolicies(t *testing.T) {
	admin := &model.User{Role: model.RoleAdmin}
	supervisor := &model.User{Role: model.RoleSupervisor, ServiceID: uintPtr(1)}
	guard := &model.User{Role: model.RoleGuard, ServiceID: uintPtr(1)}

	assert.NoError(t, CanManageCheckpointsOrUsers(admin))
	assert.Equal(t, KindForbidden, KindOf(CanManageCheckpointsOrUsers(supervisor)))
	assert.Equal(t, KindForbidden, KindOf(CanManageCheckpointsOrUsers(guard)))

	assert.NoError(t, CanViewReports(admin))
	assert.NoError(t, CanViewReports(supervisor))
	assert.Equal(t, KindForbidden, KindOf(CanViewReports(guard)))
}
