// README: Admin approval gate handlers: review listing, approve, reject.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/dispatch"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/pickup"
	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

type AdminHandler struct {
	pickups  *pickup.Service
	dispatch *dispatch.Service
	log      *zap.Logger
}

func NewAdminHandler(pickups *pickup.Service, dispatchSvc *dispatch.Service, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{pickups: pickups, dispatch: dispatchSvc, log: log}
}

// List supports filter and keyset pagination over the review queue.
func (h *AdminHandler) List(c *gin.Context) {
	f := pickup.ReviewFilter{
		Status:    pickup.Status(c.Query("status")),
		WasteType: pickup.WasteType(c.Query("waste_type")),
		Priority:  pickup.Priority(c.Query("priority")),
		Query:     c.Query("q"),
		Cursor:    c.Query("cursor"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		f.To = &t
	}

	items, next, err := h.pickups.ListReview(c.Request.Context(), f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pickups": pickupListJSON(items), "next_cursor": next})
}

func (h *AdminHandler) Approve(c *gin.Context) {
	id := types.ID(c.Param("id"))
	err := h.pickups.Approve(c.Request.Context(), pickup.ApproveCommand{
		PickupID: id,
		AdminID:  callerID(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	// Kick the broker right away; the sweeper would get there anyway.
	if h.dispatch != nil {
		if err := h.dispatch.Offer(c.Request.Context(), id); err != nil {
			h.log.Warn("immediate offer failed", zap.String("pickup_id", string(id)), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": pickup.StatusAwaitingAgent})
}

type rejectReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *AdminHandler) Reject(c *gin.Context) {
	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "reason is required")
		return
	}
	err := h.pickups.Reject(c.Request.Context(), pickup.RejectCommand{
		PickupID: types.ID(c.Param("id")),
		AdminID:  callerID(c),
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": pickup.StatusAdminRejected})
}
