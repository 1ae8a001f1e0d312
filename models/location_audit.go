package models

import "time"

// LocationAudit records where a deposit-type award happened. It is written
// best-effort after the award commits; a failed write never fails the award.
type LocationAudit struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      uint      `gorm:"index" json:"user_id"`
	TxID        string    `gorm:"size:32" json:"tx_id"`
	DustbinCode string    `gorm:"size:5" json:"dustbin_code"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	RecordedAt  time.Time `json:"recorded_at"`
}
