package service

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"openpatrol/api/internal/model"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named shared-cache DB so every pooled connection sees the same data
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Service{},
		&model.Checkpoint{},
		&model.Visit{},
		&model.LoginLog{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// seedService inserts a service and returns it.
func seedService(t *testing.T, db *gorm.DB, name string) *model.Service {
	t.Helper()

	svc := model.Service{
		Name:                 name,
		OperatingDays:        model.WeekdayList{0, 1, 2, 3, 4},
		StartTime:            "22:00",
		EndTime:              "06:00",
		RoundIntervalMinutes: 60,
		Active:               true,
	}
	require.NoError(t, db.Create(&svc).Error)
	return &svc
}

// seedCheckpoint inserts a checkpoint at the given position.
func seedCheckpoint(t *testing.T, db *gorm.DB, serviceID uint, name string, lat, lon float64) *model.Checkpoint {
	t.Helper()

	cp := model.Checkpoint{
		ServiceID: serviceID,
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		QRCode:    "ACRUX-" + name,
		Active:    true,
	}
	require.NoError(t, db.Create(&cp).Error)
	return &cp
}

// seedUser inserts a user with the given role and service.
func seedUser(t *testing.T, db *gorm.DB, email, role string, serviceID *uint) *model.User {
	t.Helper()

	user := model.User{
		Email:     email,
		Password:  "not-a-real-hash",
		Name:      email,
		Role:      role,
		ServiceID: serviceID,
		Active:    true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func uintPtr(v uint) *uint { return &v }
