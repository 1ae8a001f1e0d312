package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greenloop/binpoints/ledger"
	"github.com/greenloop/binpoints/middleware"
	"github.com/greenloop/binpoints/utils"
)

// EligibilityController serves the advisory pre-flight check before a
// deposit flow starts.
type EligibilityController struct {
	ledger *ledger.Ledger
}

// NewEligibilityController creates a new controller instance.
func NewEligibilityController(l *ledger.Ledger) *EligibilityController {
	return &EligibilityController{ledger: l}
}

// Check reports whether the caller may start a deposit. An unverified email
// is a 403; an exhausted daily quota is a normal 200 with eligible=false,
// since the account itself is fine.
func (e *EligibilityController) Check(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	identity := ledger.Identity{
		UserID:        userID,
		EmailVerified: ctx.GetBool(middleware.ContextEmailVerifiedKey),
		Provider:      ctx.GetString(middleware.ContextProviderKey),
	}

	result, err := e.ledger.CheckEligibility(ctx.Request.Context(), identity)
	if err != nil {
		utils.Sugar.Errorw("eligibility check failed", "user_id", userID, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to check eligibility")
		return
	}

	if !result.Eligible && result.Reason == ledger.ReasonEmailNotVerified {
		utils.ErrorWithData(ctx, http.StatusForbidden, 40301, "email not verified", gin.H{
			"eligible": false,
			"reason":   result.Reason,
		})
		return
	}

	payload := gin.H{
		"eligible":           result.Eligible,
		"remaining_deposits": result.Remaining,
		"limit":              result.Limit,
	}
	if result.Reason != "" {
		payload["reason"] = result.Reason
	}
	if result.ResetsAt != nil {
		payload["resets_at"] = result.ResetsAt
	}
	utils.Success(ctx, payload)
}
