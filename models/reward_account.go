package models

import "time"

// RewardAccount is the per-user durable point balance. It is created lazily
// on the first award and mutated only inside a ledger transaction.
//
// Invariant: TotalEarned - TotalRedeemed == Points, and Points >= 0.
type RewardAccount struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	UserID        uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Points        int       `gorm:"not null;default:0" json:"points"`
	TotalEarned   int       `gorm:"not null;default:0" json:"total_earned"`
	TotalRedeemed int       `gorm:"not null;default:0" json:"total_redeemed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
