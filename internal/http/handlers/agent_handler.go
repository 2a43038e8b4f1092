// README: Agent-facing handlers: availability, offers, and delivery progression.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/agent"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/dispatch"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/pickup"
	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

type AgentHandler struct {
	pickups      *pickup.Service
	dispatch     *dispatch.Service
	availability *agent.Service
}

func NewAgentHandler(pickups *pickup.Service, dispatchSvc *dispatch.Service, availability *agent.Service) *AgentHandler {
	return &AgentHandler{pickups: pickups, dispatch: dispatchSvc, availability: availability}
}

type availabilityReq struct {
	Online *bool `json:"online" binding:"required"`
}

func (h *AgentHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "online is required")
		return
	}
	if err := h.availability.SetAvailability(c.Request.Context(), callerID(c), *req.Online); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": *req.Online})
}

func (h *AgentHandler) GetAvailability(c *gin.Context) {
	a, err := h.availability.Status(c.Request.Context(), callerID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := gin.H{"online": a.Online}
	if a.Position != nil {
		out["lat"] = a.Position.Lat
		out["lng"] = a.Position.Lng
	}
	if a.LastOfferedAt != nil {
		out["last_offered_at"] = a.LastOfferedAt
	}
	c.JSON(http.StatusOK, out)
}

type locationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *AgentHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid location")
		return
	}
	err := h.availability.UpdatePosition(c.Request.Context(), callerID(c), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgentHandler) ListAvailable(c *gin.Context) {
	items, err := h.pickups.ListAvailable(c.Request.Context(), 50)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pickups": pickupListJSON(items)})
}

func (h *AgentHandler) Accept(c *gin.Context) {
	err := h.dispatch.Accept(c.Request.Context(), types.ID(c.Param("id")), callerID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": pickup.StatusAssigned})
}

func (h *AgentHandler) Reject(c *gin.Context) {
	err := h.dispatch.Reject(c.Request.Context(), types.ID(c.Param("id")), callerID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": true})
}

type advanceReq struct {
	Note string   `json:"note"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

func (r advanceReq) location() *types.Point {
	if r.Lat == nil || r.Lng == nil {
		return nil
	}
	return &types.Point{Lat: *r.Lat, Lng: *r.Lng}
}

func (h *AgentHandler) Advance(c *gin.Context) {
	var req advanceReq
	_ = c.ShouldBindJSON(&req)
	err := h.pickups.Advance(c.Request.Context(), pickup.AdvanceCommand{
		PickupID: types.ID(c.Param("id")),
		AgentID:  callerID(c),
		Note:     req.Note,
		Location: req.location(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": pickup.StatusInTransit})
}

func (h *AgentHandler) Complete(c *gin.Context) {
	var req advanceReq
	_ = c.ShouldBindJSON(&req)
	err := h.pickups.Complete(c.Request.Context(), pickup.CompleteCommand{
		PickupID: types.ID(c.Param("id")),
		AgentID:  callerID(c),
		Location: req.location(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	p, err := h.pickups.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": p.Status, "points": p.Points, "earnings": p.Earnings})
}

func (h *AgentHandler) Release(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	err := h.pickups.Release(c.Request.Context(), pickup.ReleaseCommand{
		PickupID: types.ID(c.Param("id")),
		AgentID:  callerID(c),
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": pickup.StatusAwaitingAgent})
}

func (h *AgentHandler) ListMine(c *gin.Context) {
	items, err := h.pickups.ListByAgent(c.Request.Context(), callerID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pickups": pickupListJSON(items)})
}
