package models

import "time"

// Transaction types.
const (
	TxTypeEarn   = "earn"
	TxTypeRedeem = "redeem"
)

// Transaction is the append-only audit record written in the same atomic
// operation as the balance mutation. Rows are never updated or deleted by
// the ledger; TxID is cryptographically random so references cannot be
// guessed or enumerated.
type Transaction struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	TxID           string    `gorm:"size:32;uniqueIndex;not null" json:"tx_id"`
	UserID         uint      `gorm:"index;index:idx_tx_user_idem,unique;not null" json:"user_id"`
	Type           string    `gorm:"size:16;not null" json:"type"`
	Points         int       `gorm:"not null" json:"points"`
	Reason         string    `gorm:"size:64" json:"reason"`
	Payload        string    `gorm:"type:text" json:"payload"`
	IdempotencyKey *string   `gorm:"size:64;index:idx_tx_user_idem,unique" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
