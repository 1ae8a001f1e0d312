package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/greenloop/binpoints/models"
)

// Ineligibility reasons.
const (
	ReasonEmailNotVerified  = "email_not_verified"
	ReasonDailyLimitReached = "daily_limit_reached"
)

// Identity is what the identity collaborator asserts about the caller.
type Identity struct {
	UserID        uint
	EmailVerified bool
	Provider      string
}

// EligibilityResult is advisory: it lets a caller skip an expensive deposit
// flow early. The daily cap is enforced again, atomically, inside Award.
type EligibilityResult struct {
	Eligible  bool
	Reason    string
	Remaining int
	Limit     int
	ResetsAt  *time.Time
}

// CheckEligibility runs the read-only pre-flight checks in order,
// short-circuiting on the first failure. It never mutates the daily
// counter.
func (l *Ledger) CheckEligibility(ctx context.Context, id Identity) (*EligibilityResult, error) {
	if !l.identityVerified(id) {
		return &EligibilityResult{
			Eligible: false,
			Reason:   ReasonEmailNotVerified,
			Limit:    l.dailyLimit,
		}, nil
	}

	now := time.Now()
	count := 0
	var counter models.DailyLimitCounter
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", id.UserID, models.DayKey(now)).
		First(&counter).Error
	switch {
	case err == nil:
		count = counter.Count
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no deposits yet today
	default:
		return nil, err
	}

	return decideDailyQuota(count, l.dailyLimit, now), nil
}

// identityVerified accepts a verified email, or an account from a federated
// provider whose emails are verified by contract.
func (l *Ledger) identityVerified(id Identity) bool {
	if id.EmailVerified {
		return true
	}
	for _, p := range l.federated {
		if strings.EqualFold(p, id.Provider) {
			return true
		}
	}
	return false
}

func decideDailyQuota(count, limit int, now time.Time) *EligibilityResult {
	if count >= limit {
		reset := models.NextLocalMidnight(now)
		return &EligibilityResult{
			Eligible: false,
			Reason:   ReasonDailyLimitReached,
			Limit:    limit,
			ResetsAt: &reset,
		}
	}
	return &EligibilityResult{
		Eligible:  true,
		Remaining: limit - count,
		Limit:     limit,
	}
}
