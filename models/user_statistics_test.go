package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAdvanceOnDepositCounters(t *testing.T) {
	tests := []struct {
		name      string
		eventTime time.Time
		earlyBird int
		nightOwl  int
		weekend   int
	}{
		{"early morning weekday", at("2025-03-11 07:59"), 1, 0, 0},
		{"exactly eight is not early", at("2025-03-11 08:00"), 0, 0, 0},
		{"evening before twenty", at("2025-03-11 19:59"), 0, 0, 0},
		{"twenty is night owl", at("2025-03-11 20:00"), 0, 1, 0},
		{"saturday counts weekend", at("2025-03-15 12:00"), 0, 0, 1},
		{"sunday counts weekend", at("2025-03-16 12:00"), 0, 0, 1},
		{"early sunday counts both", at("2025-03-16 06:00"), 1, 0, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := UserStatistics{}.AdvanceOnDeposit(tc.eventTime, "out-1")
			assert.Equal(t, 1, got.TotalDeposits)
			assert.Equal(t, tc.earlyBird, got.EarlyBirdDeposits)
			assert.Equal(t, tc.nightOwl, got.NightOwlDeposits)
			assert.Equal(t, tc.weekend, got.WeekendDeposits)
		})
	}
}

func TestAdvanceOnDepositStreak(t *testing.T) {
	base := at("2025-03-10 10:00")

	t.Run("first ever deposit starts at one", func(t *testing.T) {
		got := UserStatistics{}.AdvanceOnDeposit(base, "")
		assert.Equal(t, 1, got.CurrentStreak)
		assert.Equal(t, 1, got.LongestStreak)
	})

	t.Run("next day increments", func(t *testing.T) {
		prev := UserStatistics{CurrentStreak: 3, LongestStreak: 3, LastDepositAt: &base}
		got := prev.AdvanceOnDeposit(at("2025-03-11 09:00"), "")
		assert.Equal(t, 4, got.CurrentStreak)
		assert.Equal(t, 4, got.LongestStreak)
	})

	t.Run("same day leaves streak unchanged", func(t *testing.T) {
		prev := UserStatistics{CurrentStreak: 3, LongestStreak: 5, LastDepositAt: &base}
		got := prev.AdvanceOnDeposit(at("2025-03-10 22:00"), "")
		assert.Equal(t, 3, got.CurrentStreak)
		assert.Equal(t, 5, got.LongestStreak)
	})

	t.Run("two day gap resets", func(t *testing.T) {
		prev := UserStatistics{CurrentStreak: 7, LongestStreak: 7, LastDepositAt: &base}
		got := prev.AdvanceOnDeposit(at("2025-03-13 09:00"), "")
		assert.Equal(t, 1, got.CurrentStreak)
		assert.Equal(t, 7, got.LongestStreak)
	})

	t.Run("year boundary still counts as consecutive", func(t *testing.T) {
		last := at("2024-12-31 23:00")
		prev := UserStatistics{CurrentStreak: 2, LongestStreak: 2, LastDepositAt: &last}
		got := prev.AdvanceOnDeposit(at("2025-01-01 01:00"), "")
		assert.Equal(t, 3, got.CurrentStreak)
	})
}

func TestAdvanceOnDepositOutlets(t *testing.T) {
	got := UserStatistics{}.AdvanceOnDeposit(at("2025-03-10 10:00"), "")
	assert.Equal(t, map[string]int{"unknown": 1}, got.OutletsVisited)

	got = got.AdvanceOnDeposit(at("2025-03-11 10:00"), "out-7")
	got = got.AdvanceOnDeposit(at("2025-03-12 10:00"), "out-7")
	assert.Equal(t, map[string]int{"unknown": 1, "out-7": 2}, got.OutletsVisited)
}

func TestAdvanceOnDepositIsPure(t *testing.T) {
	last := at("2025-03-10 10:00")
	prev := UserStatistics{
		TotalDeposits:  4,
		OutletsVisited: map[string]int{"out-1": 4},
		CurrentStreak:  2,
		LongestStreak:  2,
		LastDepositAt:  &last,
	}

	got := prev.AdvanceOnDeposit(at("2025-03-11 10:00"), "out-2")
	require.Equal(t, 5, got.TotalDeposits)

	// previous snapshot must be untouched, including the outlet map
	assert.Equal(t, 4, prev.TotalDeposits)
	assert.Equal(t, map[string]int{"out-1": 4}, prev.OutletsVisited)
	assert.Equal(t, last, *prev.LastDepositAt)

	again := prev.AdvanceOnDeposit(at("2025-03-11 10:00"), "out-2")
	assert.Equal(t, got, again, "same inputs must produce the same snapshot")
}
