package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
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
	"github.com/greenloop/binpoints/utils"
)

// The handlers reject malformed and invalid requests before the ledger ever
// opens a transaction, so these tests run against a ledger with no store.
func testRouter(userID uint) *gin.Engine {
	led := ledger.New(nil, ledger.CryptoIDGenerator{}, ledger.Options{}, zap.NewNop().Sugar())
	rewards := NewRewardController(nil, led)
	eligibility := NewEligibilityController(led)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	identity := func(ctx *gin.Context) {
		if userID != 0 {
			ctx.Set(middleware.ContextUserIDKey, userID)
		}
	}
	r.POST("/award", identity, rewards.AwardPoints)
	r.POST("/redeem", identity, rewards.RedeemPoints)
	r.GET("/eligibility", identity, eligibility.Check)
	return r
}

func post(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestMain(m *testing.M) {
	utils.Logger = zap.NewNop()
	utils.Sugar = utils.Logger.Sugar()
	m.Run()
}

func TestAwardPointsRequiresIdentity(t *testing.T) {
	w := post(t, testRouter(0), "/award", `{"pointsToAdd":10,"reason":"bonus"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40110")
}

func TestAwardPointsMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong type", `{"pointsToAdd":"ten"}`},
		{"missing points", `{"reason":"bonus"}`},
		{"missing reason", `{"pointsToAdd":10}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, testRouter(7), "/award", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "40000")
		})
	}
}

func TestAwardPointsValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"points above maximum", `{"pointsToAdd":51,"reason":"bonus"}`},
		{"unknown reason", `{"pointsToAdd":10,"reason":"hack"}`},
		{"deposit without dustbin code", `{"pointsToAdd":10,"reason":"deposit","userLocation":{"lat":52.3,"lng":4.8}}`},
		{"deposit without location", `{"pointsToAdd":10,"reason":"deposit","dustbinCode":"AB12"}`},
		{"latitude out of range", `{"pointsToAdd":10,"reason":"deposit","dustbinCode":"AB12","userLocation":{"lat":91,"lng":4.8}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, testRouter(7), "/award", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "40001")
		})
	}
}

func TestRedeemPointsValidation(t *testing.T) {
	// zero and missing fields fail the binding layer
	w := post(t, testRouter(7), "/redeem", `{"pointsToRedeem":0,"couponName":"coffee"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "40000")

	w = post(t, testRouter(7), "/redeem", `{"pointsToRedeem":20}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "40000")

	// well-formed but invalid values fail ledger validation
	w = post(t, testRouter(7), "/redeem", `{"pointsToRedeem":-1,"couponName":"coffee"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "40001")
}

// unreachableDB opens a GORM handle whose first query fails with a dial
// error, standing in for a store outage.
func unreachableDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "root:@tcp(127.0.0.1:1)/none?timeout=100ms",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               logger.Discard,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func outageRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db := unreachableDB(t)
	led := ledger.New(db, ledger.CryptoIDGenerator{}, ledger.Options{}, zap.NewNop().Sugar())
	rewards := NewRewardController(db, led)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	identity := func(ctx *gin.Context) { ctx.Set(middleware.ContextUserIDKey, uint(7)) }
	r.POST("/award", identity, rewards.AwardPoints)
	r.POST("/redeem", identity, rewards.RedeemPoints)
	r.GET("/summary", identity, rewards.Summary)
	return r
}

func TestStoreOutageMapsToServerError(t *testing.T) {
	r := outageRouter(t)

	w := post(t, r, "/award", `{"pointsToAdd":10,"reason":"bonus"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "50001")

	w = post(t, r, "/redeem", `{"pointsToRedeem":10,"couponName":"coffee"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "50002")

	w = httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/summary", nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "50003")
}

func TestEligibilityUnverifiedEmail(t *testing.T) {
	// no email_verified or provider claims set: the check fails closed
	// with a 403 before any store lookup
	r := testRouter(7)
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/eligibility", nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "40301")
	assert.Contains(t, w.Body.String(), "email_not_verified")
}
