package models

import "time"

// DayKeyLayout formats a time into the per-day counter key.
const DayKeyLayout = "20060102"

// DailyLimitCounter caps deposit-type awards per user per calendar day.
// It is incremented exactly once per successful award, inside the award
// transaction, never by the advisory eligibility check.
type DailyLimitCounter struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	UserID        uint      `gorm:"index:idx_daily_user_day,unique;not null" json:"user_id"`
	Day           string    `gorm:"index:idx_daily_user_day,unique;size:8;not null" json:"day"`
	Count         int       `gorm:"not null;default:0" json:"count"`
	LastDepositAt time.Time `json:"last_deposit_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DayKey returns the counter key for t's calendar day in t's location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// NextLocalMidnight is the moment today's counter stops applying.
func NextLocalMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
