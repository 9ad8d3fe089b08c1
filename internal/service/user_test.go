package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"openpatrol/api/internal/model"
)

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	users := NewUserService(db)
	ctx := context.Background()

	user, err := users.Create(ctx, model.CreateUserRequest{
		Email:     "guard@harbor.test",
		Password:  "correct-horse",
		Name:      "Guard One",
		Role:      model.RoleGuard,
		ServiceID: &svc.ID,
	})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.True(t, user.Active)
	// Password is stored hashed
	assert.NotEqual(t, "correct-horse", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("correct-horse")))
}

func TestUserCreateValidation(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	users := NewUserService(db)
	ctx := context.Background()

	base := model.CreateUserRequest{
		Email:     "guard@harbor.test",
		Password:  "correct-horse",
		Name:      "Guard One",
		Role:      model.RoleGuard,
		ServiceID: &svc.ID,
	}

	_, err := users.Create(ctx, base)
	require.NoError(t, err)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := users.Create(ctx, base)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("invalid role", func(t *testing.T) {
		req := base
		req.Email = "other@harbor.test"
		req.Role = "janitor"
		_, err := users.Create(ctx, req)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("unknown service", func(t *testing.T) {
		req := base
		req.Email = "other@harbor.test"
		req.ServiceID = uintPtr(9999)
		_, err := users.Create(ctx, req)
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestUserUpdateAndAuthenticate(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	users := NewUserService(db)
	auth := NewAuthService(db)
	ctx := context.Background()

	user, err := users.Create(ctx, model.CreateUserRequest{
		Email:     "guard@harbor.test",
		Password:  "correct-horse",
		Name:      "Guard One",
		Role:      model.RoleGuard,
		ServiceID: &svc.ID,
	})
	require.NoError(t, err)

	authed, err := auth.Authenticate(ctx, "guard@harbor.test", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = auth.Authenticate(ctx, "guard@harbor.test", "wrong")
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = auth.Authenticate(ctx, "nobody@harbor.test", "correct-horse")
	assert.Equal(t, KindForbidden, KindOf(err))

	// Deactivated accounts stop authenticating immediately
	inactive := false
	_, err = users.Update(ctx, user.ID, model.UpdateUserRequest{Active: &inactive})
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, "guard@harbor.test", "correct-horse")
	assert.Equal(t, KindForbidden, KindOf(err))

	t.Run("short password rejected", func(t *testing.T) {
		short := "abc"
		_, err := users.Update(ctx, user.ID, model.UpdateUserRequest{Password: &short})
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	})
}

func TestUserDelete(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	users := NewUserService(db)
	ctx := context.Background()

	admin := seedUser(t, db, "admin@harbor.test", model.RoleAdmin, nil)
	guard := seedUser(t, db, "guard@harbor.test", model.RoleGuard, &svc.ID)

	assert.Equal(t, KindInvalidArgument, KindOf(users.Delete(ctx, admin, admin.ID)))
	assert.NoError(t, users.Delete(ctx, admin, guard.ID))

	_, err := users.Get(ctx, guard.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListGuards(t *testing.T) {
	db := newTestDB(t)
	svc := seedService(t, db, "harbor")
	other := seedService(t, db, "airport")
	users := NewUserService(db)
	ctx := context.Background()

	seedUser(t, db, "g1@harbor.test", model.RoleGuard, &svc.ID)
	seedUser(t, db, "g2@airport.test", model.RoleGuard, &other.ID)
	seedUser(t, db, "super@harbor.test", model.RoleSupervisor, &svc.ID)

	t.Run("admin sees all guards", func(t *testing.T) {
		guards, err := users.ListGuards(ctx, &model.User{Role: model.RoleAdmin})
		require.NoError(t, err)
		assert.Len(t, guards, 2)
	})

	t.Run("supervisor sees own service guards", func(t *testing.T) {
		guards, err := users.ListGuards(ctx, &model.User{Role: model.RoleSupervisor, ServiceID: &svc.ID})
		require.NoError(t, err)
		require.Len(t, guards, 1)
		assert.Equal(t, "g1@harbor.test", guards[0].Email)
	})

	t.Run("guard denied", func(t *testing.T) {
		_, err := users.ListGuards(ctx, &model.User{Role: model.RoleGuard, ServiceID: &svc.ID})
		assert.Equal(t, KindForbidden, KindOf(err))
	})
}
