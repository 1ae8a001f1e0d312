package controllers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/greenloop/binpoints/ledger"
	"github.com/greenloop/binpoints/middleware"
	"github.com/greenloop/binpoints/models"
)

// Integration test against a live MySQL, same guard as the ledger tests.
func TestSummaryStatsLoadFailure(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping MySQL integration test")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.RewardAccount{}, &models.Transaction{}))
	// Dropping the statistics table makes its load fail with a real store
	// error, distinct from the not-found of an account with no deposits.
	require.NoError(t, db.Migrator().DropTable(&models.UserStatistics{}))
	t.Cleanup(func() {
		_ = db.AutoMigrate(&models.UserStatistics{})
		_ = db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.RewardAccount{}).Error
	})

	require.NoError(t, db.Create(&models.RewardAccount{UserID: 42, Points: 10, TotalEarned: 10}).Error)

	led := ledger.New(db, ledger.CryptoIDGenerator{}, ledger.Options{}, zap.NewNop().Sugar())
	rewards := NewRewardController(db, led)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/summary", func(ctx *gin.Context) {
		ctx.Set(middleware.ContextUserIDKey, uint(42))
	}, rewards.Summary)

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/summary", nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "50003")
}
