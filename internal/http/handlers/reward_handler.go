// README: Reward handlers: list a requester's rewards and redeem codes.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/rewards"
)

type RewardHandler struct {
	rewards *rewards.Service
}

func NewRewardHandler(svc *rewards.Service) *RewardHandler {
	return &RewardHandler{rewards: svc}
}

func (h *RewardHandler) ListMine(c *gin.Context) {
	items, err := h.rewards.ListByRequester(c.Request.Context(), callerID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, r := range items {
		entry := gin.H{
			"id":         r.ID,
			"pickup_id":  r.PickupID,
			"points":     r.Points,
			"code":       r.Code,
			"expires_at": r.ExpiresAt.Format(time.RFC3339),
			"redeemed":   r.Redeemed(),
			"expired":    r.Expired(time.Now()),
		}
		if r.RedeemedAt != nil {
			entry["redeemed_at"] = r.RedeemedAt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"rewards": out})
}

type redeemReq struct {
	Code string `json:"code" binding:"required"`
}

func (h *RewardHandler) Redeem(c *gin.Context) {
	var req redeemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "code is required")
		return
	}
	r, err := h.rewards.Redeem(c.Request.Context(), callerID(c), req.Code)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          r.ID,
		"points":      r.Points,
		"redeemed_at": r.RedeemedAt.Format(time.RFC3339),
	})
}
