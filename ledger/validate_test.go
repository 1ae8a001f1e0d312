package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLedger() *Ledger {
	return New(nil, CryptoIDGenerator{}, Options{}, zap.NewNop().Sugar())
}

func depositRequest() AwardRequest {
	return AwardRequest{
		UserID:      1,
		Points:      10,
		Reason:      ReasonDeposit,
		DustbinCode: "AB12",
		Location:    &Location{Lat: 52.37, Lng: 4.89},
		OutletID:    "out-1",
	}
}

func TestValidateAwardAccepts(t *testing.T) {
	l := testLedger()

	require.NoError(t, l.validateAward(depositRequest()))

	// non-deposit reasons need no dustbin or location
	require.NoError(t, l.validateAward(AwardRequest{UserID: 1, Points: 5, Reason: ReasonBonus}))
	require.NoError(t, l.validateAward(AwardRequest{UserID: 1, Points: 50, Reason: ReasonReferral}))
}

func TestValidateAwardRejects(t *testing.T) {
	l := testLedger()

	tests := []struct {
		name   string
		mutate func(*AwardRequest)
		field  string
	}{
		{"zero user", func(r *AwardRequest) { r.UserID = 0 }, "userId"},
		{"zero points", func(r *AwardRequest) { r.Points = 0 }, "pointsToAdd"},
		{"negative points", func(r *AwardRequest) { r.Points = -3 }, "pointsToAdd"},
		{"points above maximum", func(r *AwardRequest) { r.Points = 51 }, "pointsToAdd"},
		{"unknown reason", func(r *AwardRequest) { r.Reason = "hack" }, "reason"},
		{"idempotency key too long", func(r *AwardRequest) { r.IdempotencyKey = strings.Repeat("k", 65) }, "idempotencyKey"},
		{"empty dustbin code", func(r *AwardRequest) { r.DustbinCode = "" }, "dustbinCode"},
		{"dustbin code too long", func(r *AwardRequest) { r.DustbinCode = "ABC123" }, "dustbinCode"},
		{"dustbin code with symbols", func(r *AwardRequest) { r.DustbinCode = "AB-1" }, "dustbinCode"},
		{"missing location", func(r *AwardRequest) { r.Location = nil }, "userLocation"},
		{"latitude too high", func(r *AwardRequest) { r.Location.Lat = 90.5 }, "userLocation.lat"},
		{"latitude too low", func(r *AwardRequest) { r.Location.Lat = -91 }, "userLocation.lat"},
		{"longitude too high", func(r *AwardRequest) { r.Location.Lng = 180.1 }, "userLocation.lng"},
		{"longitude too low", func(r *AwardRequest) { r.Location.Lng = -181 }, "userLocation.lng"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := depositRequest()
			tc.mutate(&req)
			err := l.validateAward(req)
			require.Error(t, err)
			require.True(t, IsValidation(err))
			ve := err.(*ValidationError)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestValidateAwardBoundaryCoordinates(t *testing.T) {
	l := testLedger()
	req := depositRequest()
	req.Location = &Location{Lat: 90, Lng: -180}
	assert.NoError(t, l.validateAward(req))
	req.Location = &Location{Lat: -90, Lng: 180}
	assert.NoError(t, l.validateAward(req))
}

func TestValidateRedeem(t *testing.T) {
	require.NoError(t, validateRedeem(RedeemRequest{UserID: 1, Points: 20, CouponName: "coffee"}))

	tests := []struct {
		name string
		req  RedeemRequest
	}{
		{"zero user", RedeemRequest{Points: 20, CouponName: "coffee"}},
		{"zero points", RedeemRequest{UserID: 1, CouponName: "coffee"}},
		{"negative points", RedeemRequest{UserID: 1, Points: -1, CouponName: "coffee"}},
		{"missing coupon name", RedeemRequest{UserID: 1, Points: 20}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRedeem(tc.req)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestRetryClassification(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(ErrInsufficientBalance))
	assert.False(t, isRetryable(ErrDailyLimitReached))
	assert.False(t, isRetryable(invalid("pointsToAdd", "bad")))

	assert.True(t, isRetryable(errors.New("Error 1213: Deadlock found when trying to get lock; try restarting transaction")))
	assert.True(t, isRetryable(errors.New("Error 1205: Lock wait timeout exceeded; try restarting transaction")))
	assert.True(t, isRetryable(errors.New("Error 1062: Duplicate entry '1-20250310' for key 'idx_daily_user_day'")))
	assert.False(t, isRetryable(errors.New("Error 1146: Table 'binpoints.missing' doesn't exist")))
}
