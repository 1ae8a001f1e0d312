package ledger

import "regexp"

// Award reasons.
const (
	ReasonDeposit     = "deposit"
	ReasonBonus       = "bonus"
	ReasonStreak      = "streak"
	ReasonAchievement = "achievement"
	ReasonReferral    = "referral"
)

var validReasons = map[string]bool{
	ReasonDeposit:     true,
	ReasonBonus:       true,
	ReasonStreak:      true,
	ReasonAchievement: true,
	ReasonReferral:    true,
}

var dustbinCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,5}$`)

// Location is a WGS84 coordinate pair supplied with deposit awards.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AwardRequest asks the ledger to credit points.
type AwardRequest struct {
	UserID         uint
	Points         int
	Reason         string
	DustbinCode    string
	Location       *Location
	OutletID       string
	IdempotencyKey string
}

// RedeemRequest asks the ledger to debit points for a coupon.
type RedeemRequest struct {
	UserID     uint
	Points     int
	CouponName string
	CouponID   string
}

func (l *Ledger) validateAward(req AwardRequest) error {
	if req.UserID == 0 {
		return invalid("userId", "missing user identity")
	}
	if req.Points < 1 || req.Points > l.maxPoints {
		return invalid("pointsToAdd", "points must be between 1 and the per-award maximum")
	}
	if !validReasons[req.Reason] {
		return invalid("reason", "unknown award reason")
	}
	if len(req.IdempotencyKey) > 64 {
		return invalid("idempotencyKey", "key exceeds 64 characters")
	}
	if req.Reason != ReasonDeposit {
		return nil
	}
	if !dustbinCodePattern.MatchString(req.DustbinCode) {
		return invalid("dustbinCode", "code must be 1-5 alphanumeric characters")
	}
	if req.Location == nil {
		return invalid("userLocation", "location is required for deposits")
	}
	if req.Location.Lat < -90 || req.Location.Lat > 90 {
		return invalid("userLocation.lat", "latitude out of range")
	}
	if req.Location.Lng < -180 || req.Location.Lng > 180 {
		return invalid("userLocation.lng", "longitude out of range")
	}
	return nil
}

func validateRedeem(req RedeemRequest) error {
	if req.UserID == 0 {
		return invalid("userId", "missing user identity")
	}
	if req.Points <= 0 {
		return invalid("pointsToRedeem", "points must be positive")
	}
	if req.CouponName == "" {
		return invalid("couponName", "coupon name is required")
	}
	if len(req.CouponName) > 64 {
		return invalid("couponName", "coupon name exceeds 64 characters")
	}
	return nil
}
