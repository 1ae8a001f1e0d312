// Package ledger implements the atomic reward transactions: every balance
// mutation, daily-counter increment, statistics update, and audit record
// commits inside one store transaction, so concurrent awards and
// redemptions against the same account serialize on row locks instead of
// racing.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greenloop/binpoints/models"
)

// Options bound the ledger's behaviour; zero values fall back to product
// defaults.
type Options struct {
	DailyDepositLimit  int
	MaxPointsPerAward  int
	FederatedProviders []string
	MaxRetries         int
}

// Ledger owns all writes to RewardAccount, UserStatistics,
// DailyLimitCounter, and Transaction. Handlers only read projections.
type Ledger struct {
	db         *gorm.DB
	ids        IDGenerator
	log        *zap.SugaredLogger
	dailyLimit int
	maxPoints  int
	federated  []string
	maxRetries int
}

// New builds a ledger over the store.
func New(db *gorm.DB, ids IDGenerator, opts Options, log *zap.SugaredLogger) *Ledger {
	if opts.DailyDepositLimit <= 0 {
		opts.DailyDepositLimit = 5
	}
	if opts.MaxPointsPerAward <= 0 {
		opts.MaxPointsPerAward = 50
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Ledger{
		db:         db,
		ids:        ids,
		log:        log,
		dailyLimit: opts.DailyDepositLimit,
		maxPoints:  opts.MaxPointsPerAward,
		federated:  opts.FederatedProviders,
		maxRetries: opts.MaxRetries,
	}
}

// AwardResult reports the balance after a successful award.
type AwardResult struct {
	TxID        string
	Points      int
	TotalEarned int
	Replayed    bool
}

// RedeemResult reports the balance after a successful redemption.
type RedeemResult struct {
	TxID          string
	Points        int
	TotalRedeemed int
}

// Award credits points atomically. For deposit-reason awards it re-checks
// the daily cap inside the transaction (the advisory eligibility check can
// be stale by the time the award runs), advances the statistics snapshot,
// and appends the audit Transaction, all or nothing. A repeated
// idempotency key replays the original outcome instead of double-crediting.
func (l *Ledger) Award(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	if err := l.validateAward(req); err != nil {
		return nil, err
	}

	now := time.Now()
	var res *AwardResult
	err := l.runTx(ctx, func(tx *gorm.DB) error {
		if req.IdempotencyKey != "" {
			prior, err := l.findReplay(tx, req)
			if err != nil {
				return err
			}
			if prior != nil {
				res = prior
				return nil
			}
		}

		acct, err := lockOrInitAccount(tx, req.UserID)
		if err != nil {
			return err
		}
		acct.Points += req.Points
		acct.TotalEarned += req.Points

		if req.Reason == ReasonDeposit {
			if err := l.consumeDailyQuota(tx, req.UserID, now); err != nil {
				return err
			}
			if err := advanceStats(tx, req.UserID, now, req.OutletID); err != nil {
				return err
			}
		}

		txID, err := l.appendTransaction(tx, req.UserID, models.TxTypeEarn, req.Points, req.Reason, awardPayload(req), req.IdempotencyKey)
		if err != nil {
			return err
		}
		if err := tx.Save(acct).Error; err != nil {
			return err
		}

		res = &AwardResult{TxID: txID, Points: acct.Points, TotalEarned: acct.TotalEarned}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Reason == ReasonDeposit && !res.Replayed {
		l.recordLocationAudit(ctx, req, res.TxID, now)
	}
	return res, nil
}

// Redeem debits points atomically. Spending more than the balance is a
// business outcome, not an infrastructure failure, and leaves the account
// untouched.
func (l *Ledger) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if err := validateRedeem(req); err != nil {
		return nil, err
	}

	var res *RedeemResult
	err := l.runTx(ctx, func(tx *gorm.DB) error {
		var acct models.RewardAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", req.UserID).First(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInsufficientBalance
		}
		if err != nil {
			return err
		}
		if acct.Points < req.Points {
			return ErrInsufficientBalance
		}

		acct.Points -= req.Points
		acct.TotalRedeemed += req.Points
		if err := tx.Save(&acct).Error; err != nil {
			return err
		}

		// Bump the redemption counter when a statistics snapshot exists;
		// zero rows affected just means no deposit ever created one.
		if err := tx.Model(&models.UserStatistics{}).
			Where("user_id = ?", req.UserID).
			UpdateColumn("rewards_redeemed", gorm.Expr("rewards_redeemed + 1")).Error; err != nil {
			return err
		}

		txID, err := l.appendTransaction(tx, req.UserID, models.TxTypeRedeem, req.Points, req.CouponName, redeemPayload(req), "")
		if err != nil {
			return err
		}

		res = &RedeemResult{TxID: txID, Points: acct.Points, TotalRedeemed: acct.TotalRedeemed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// runTx executes fn in a store transaction, retrying a bounded number of
// times on serialization conflicts. Anything still failing after the last
// attempt surfaces as an infrastructure error.
func (l *Ledger) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = l.db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryable(err) || attempt >= l.maxRetries {
			return err
		}
		l.log.Warnw("ledger transaction conflict, retrying",
			"attempt", attempt+1, "error", err)
		time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
	}
}

// findReplay returns the original award result when the idempotency key was
// already consumed by this user.
func (l *Ledger) findReplay(tx *gorm.DB, req AwardRequest) (*AwardResult, error) {
	var prior models.Transaction
	err := tx.Where("user_id = ? AND idempotency_key = ?", req.UserID, req.IdempotencyKey).
		First(&prior).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var acct models.RewardAccount
	if err := tx.Where("user_id = ?", req.UserID).First(&acct).Error; err != nil {
		return nil, err
	}
	return &AwardResult{
		TxID:        prior.TxID,
		Points:      acct.Points,
		TotalEarned: acct.TotalEarned,
		Replayed:    true,
	}, nil
}

func lockOrInitAccount(tx *gorm.DB, userID uint) (*models.RewardAccount, error) {
	var acct models.RewardAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = models.RewardAccount{UserID: userID}
		if err := tx.Create(&acct).Error; err != nil {
			// A concurrent first award can win the insert; the unique
			// index turns that into a duplicate error, which retries
			// into the locking read above.
			return nil, err
		}
		return &acct, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// consumeDailyQuota re-checks and increments today's counter under the same
// row lock discipline as the balance, closing the check-then-act gap left
// by the advisory eligibility endpoint.
func (l *Ledger) consumeDailyQuota(tx *gorm.DB, userID uint, now time.Time) error {
	day := models.DayKey(now)
	var counter models.DailyLimitCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND day = ?", userID, day).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if l.dailyLimit < 1 {
			return ErrDailyLimitReached
		}
		counter = models.DailyLimitCounter{UserID: userID, Day: day, Count: 1, LastDepositAt: now}
		return tx.Create(&counter).Error
	}
	if err != nil {
		return err
	}
	if counter.Count >= l.dailyLimit {
		return ErrDailyLimitReached
	}
	counter.Count++
	counter.LastDepositAt = now
	return tx.Save(&counter).Error
}

func advanceStats(tx *gorm.DB, userID uint, now time.Time, outletID string) error {
	var stats models.UserStatistics
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fresh := models.UserStatistics{UserID: userID}.AdvanceOnDeposit(now, outletID)
		return tx.Create(&fresh).Error
	}
	if err != nil {
		return err
	}
	updated := stats.AdvanceOnDeposit(now, outletID)
	return tx.Save(&updated).Error
}

func (l *Ledger) appendTransaction(tx *gorm.DB, userID uint, txType string, points int, reason, payload, idempotencyKey string) (string, error) {
	txID, err := l.ids.NewID()
	if err != nil {
		return "", err
	}
	record := models.Transaction{
		TxID:    txID,
		UserID:  userID,
		Type:    txType,
		Points:  points,
		Reason:  reason,
		Payload: payload,
	}
	if idempotencyKey != "" {
		record.IdempotencyKey = &idempotencyKey
	}
	if err := tx.Create(&record).Error; err != nil {
		return "", err
	}
	return txID, nil
}

// recordLocationAudit writes the deposit location outside the atomic
// boundary. Failures are logged and swallowed: the award already committed.
func (l *Ledger) recordLocationAudit(ctx context.Context, req AwardRequest, txID string, now time.Time) {
	if req.Location == nil {
		return
	}
	audit := models.LocationAudit{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		TxID:        txID,
		DustbinCode: req.DustbinCode,
		Lat:         req.Location.Lat,
		Lng:         req.Location.Lng,
		RecordedAt:  now,
	}
	if err := l.db.WithContext(ctx).Create(&audit).Error; err != nil {
		l.log.Warnw("location audit write failed", "user_id", req.UserID, "tx_id", txID, "error", err)
	}
}

func awardPayload(req AwardRequest) string {
	snapshot := map[string]any{
		"pointsToAdd": req.Points,
		"reason":      req.Reason,
	}
	if req.Reason == ReasonDeposit {
		snapshot["dustbinCode"] = req.DustbinCode
		snapshot["userLocation"] = req.Location
		if req.OutletID != "" {
			snapshot["outletId"] = req.OutletID
		}
	}
	raw, _ := json.Marshal(snapshot)
	return string(raw)
}

func redeemPayload(req RedeemRequest) string {
	snapshot := map[string]any{
		"pointsToRedeem": req.Points,
		"couponName":     req.CouponName,
	}
	if req.CouponID != "" {
		snapshot["couponId"] = req.CouponID
	}
	raw, _ := json.Marshal(snapshot)
	return string(raw)
}
