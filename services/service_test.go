package services

import (
	"fmt"
	"testing"
	"time"

	"backend/configs"
	"backend/entity"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	// sqlite allows a single writer; one pooled connection keeps concurrent
	// test goroutines from tripping shared-cache table locks.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, configs.Migrate(db))
	return db
}

func makeUser(t *testing.T, db *gorm.DB, utorid string, role entity.Role, points int, verified bool) *entity.User {
	t.Helper()
	user := entity.User{
		Utorid:   utorid,
		Name:     "Test " + utorid,
		Email:    utorid + "@mail.utoronto.ca",
		Password: "x",
		Role:     role,
		Points:   points,
		Verified: verified,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func makePromotion(t *testing.T, db *gorm.DB, promoType entity.PromotionType, minSpending *float64, rate *float64, points *int) *entity.Promotion {
	t.Helper()
	promo := entity.Promotion{
		Name:        "promo",
		Description: "test promotion",
		Type:        promoType,
		StartTime:   time.Now().Add(-time.Hour),
		EndTime:     time.Now().Add(time.Hour),
		MinSpending: minSpending,
		Rate:        rate,
		Points:      points,
	}
	require.NoError(t, db.Create(&promo).Error)
	return &promo
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
