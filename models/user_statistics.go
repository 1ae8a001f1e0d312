package models

import "time"

// Hour-of-day boundaries for the time-of-day deposit counters.
const (
	earlyBirdBeforeHour = 8
	nightOwlFromHour    = 20
)

// UserStatistics is the per-user snapshot feeding achievement checks.
// It is written only inside the same store transaction as the balance
// change it reflects.
type UserStatistics struct {
	UserID                 uint           `gorm:"primaryKey" json:"user_id"`
	TotalDeposits          int            `gorm:"not null;default:0" json:"total_deposits"`
	EarlyBirdDeposits      int            `gorm:"not null;default:0" json:"early_bird_deposits"`
	NightOwlDeposits       int            `gorm:"not null;default:0" json:"night_owl_deposits"`
	WeekendDeposits        int            `gorm:"not null;default:0" json:"weekend_deposits"`
	OutletsVisited         map[string]int `gorm:"serializer:json;type:text" json:"outlets_visited"`
	CurrentStreak          int            `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak          int            `gorm:"not null;default:0" json:"longest_streak"`
	LastDepositAt          *time.Time     `json:"last_deposit_at"`
	RewardsRedeemed        int            `gorm:"not null;default:0" json:"rewards_redeemed"`
	StreakRewardsCollected []int          `gorm:"serializer:json;type:text" json:"streak_rewards_collected"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// AdvanceOnDeposit returns the snapshot after counting one deposit at
// eventTime against outletID. It is a pure function: the receiver is taken
// by value, the outlet map is copied, and no clock is consulted, so streak
// and counter rules can be tested without the store.
func (s UserStatistics) AdvanceOnDeposit(eventTime time.Time, outletID string) UserStatistics {
	if outletID == "" {
		outletID = "unknown"
	}

	s.TotalDeposits++
	if eventTime.Hour() < earlyBirdBeforeHour {
		s.EarlyBirdDeposits++
	}
	if eventTime.Hour() >= nightOwlFromHour {
		s.NightOwlDeposits++
	}
	if wd := eventTime.Weekday(); wd == time.Saturday || wd == time.Sunday {
		s.WeekendDeposits++
	}

	visited := make(map[string]int, len(s.OutletsVisited)+1)
	for k, v := range s.OutletsVisited {
		visited[k] = v
	}
	visited[outletID]++
	s.OutletsVisited = visited

	switch {
	case s.LastDepositAt == nil:
		s.CurrentStreak = 1
	case sameDay(*s.LastDepositAt, eventTime):
		// same-day deposits do not advance the streak
	case isYesterday(*s.LastDepositAt, eventTime):
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}

	last := eventTime
	s.LastDepositAt = &last
	return s
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func isYesterday(last, today time.Time) bool {
	yesterday := today.AddDate(0, 0, -1)
	return sameDay(last, yesterday)
}
