package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/greenloop/binpoints/ledger"
	"github.com/greenloop/binpoints/middleware"
	"github.com/greenloop/binpoints/models"
	"github.com/greenloop/binpoints/utils"
)

// RewardController handles the award/redeem/summary endpoints.
type RewardController struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewRewardController creates a new controller instance.
func NewRewardController(db *gorm.DB, l *ledger.Ledger) *RewardController {
	return &RewardController{db: db, ledger: l}
}

type locationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type depositData struct {
	OutletID string `json:"outletId"`
}

type awardRequest struct {
	PointsToAdd    int              `json:"pointsToAdd" binding:"required"`
	Reason         string           `json:"reason" binding:"required"`
	DustbinCode    string           `json:"dustbinCode"`
	UserLocation   *locationPayload `json:"userLocation"`
	DepositData    *depositData     `json:"depositData"`
	IdempotencyKey string           `json:"idempotencyKey"`
}

type redeemRequest struct {
	PointsToRedeem int    `json:"pointsToRedeem" binding:"required"`
	CouponName     string `json:"couponName" binding:"required"`
	CouponID       string `json:"couponId"`
}

// AwardPoints credits points to the caller's account.
func (r *RewardController) AwardPoints(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var body awardRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40000, "malformed request body")
		return
	}

	req := ledger.AwardRequest{
		UserID:         userID,
		Points:         body.PointsToAdd,
		Reason:         body.Reason,
		DustbinCode:    body.DustbinCode,
		IdempotencyKey: body.IdempotencyKey,
	}
	if body.UserLocation != nil {
		req.Location = &ledger.Location{Lat: body.UserLocation.Lat, Lng: body.UserLocation.Lng}
	}
	if body.DepositData != nil {
		req.OutletID = body.DepositData.OutletID
	}

	result, err := r.ledger.Award(ctx.Request.Context(), req)
	if err != nil {
		switch {
		case ledger.IsValidation(err):
			utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
		case errors.Is(err, ledger.ErrDailyLimitReached):
			utils.Error(ctx, http.StatusBadRequest, 40002, "daily deposit limit reached")
		default:
			utils.Sugar.Errorw("award transaction failed", "user_id", userID, "error", err)
			utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to award points")
		}
		return
	}

	utils.Success(ctx, gin.H{
		"transaction_id": result.TxID,
		"points":         result.Points,
		"total_earned":   result.TotalEarned,
		"replayed":       result.Replayed,
	})
}

// RedeemPoints debits points for a coupon.
func (r *RewardController) RedeemPoints(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var body redeemRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40000, "malformed request body")
		return
	}

	result, err := r.ledger.Redeem(ctx.Request.Context(), ledger.RedeemRequest{
		UserID:     userID,
		Points:     body.PointsToRedeem,
		CouponName: body.CouponName,
		CouponID:   body.CouponID,
	})
	if err != nil {
		switch {
		case ledger.IsValidation(err):
			utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			utils.Error(ctx, http.StatusBadRequest, 40003, "insufficient point balance")
		default:
			utils.Sugar.Errorw("redeem transaction failed", "user_id", userID, "error", err)
			utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to redeem points")
		}
		return
	}

	utils.Success(ctx, gin.H{
		"transaction_id": result.TxID,
		"points":         result.Points,
		"total_redeemed": result.TotalRedeemed,
	})
}

// Summary returns the caller's balance, statistics snapshot, and recent
// transactions. Read-only projection; no ledger state is touched.
func (r *RewardController) Summary(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var acct models.RewardAccount
	if err := r.db.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to load account")
			return
		}
		acct = models.RewardAccount{UserID: userID}
	}

	var stats *models.UserStatistics
	var loaded models.UserStatistics
	switch err := r.db.Where("user_id = ?", userID).First(&loaded).Error; {
	case err == nil:
		stats = &loaded
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no deposits yet, statistics stay null
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to load statistics")
		return
	}

	var recent []models.Transaction
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(10).Find(&recent).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to load transactions")
		return
	}

	utils.Success(ctx, gin.H{
		"points":         acct.Points,
		"total_earned":   acct.TotalEarned,
		"total_redeemed": acct.TotalRedeemed,
		"statistics":     stats,
		"recent":         recent,
	})
}

func getUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
