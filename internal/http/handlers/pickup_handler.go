// README: Requester-facing pickup handlers: create, get, list, cancel, rate.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/pickup"
	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

type PickupHandler struct {
	pickups *pickup.Service
}

func NewPickupHandler(pickups *pickup.Service) *PickupHandler {
	return &PickupHandler{pickups: pickups}
}

type createPickupReq struct {
	WasteType     string   `json:"waste_type" binding:"required"`
	FoodBoxes     int      `json:"food_boxes"`
	Bottles       int      `json:"bottles"`
	OtherDesc     string   `json:"other_desc"`
	Images        []string `json:"images" binding:"required,min=1"`
	Priority      string   `json:"priority" binding:"required"`
	ScheduledDate string   `json:"scheduled_date"`
	TimeSlot      string   `json:"time_slot"`
	WeightKg      float64  `json:"weight_kg"`
	Address       string   `json:"address"`
	PickupLat     float64  `json:"pickup_lat"`
	PickupLng     float64  `json:"pickup_lng"`
	DropoffLat    float64  `json:"dropoff_lat"`
	DropoffLng    float64  `json:"dropoff_lng"`
}

func (h *PickupHandler) Create(c *gin.Context) {
	var req createPickupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	var scheduled *time.Time
	if req.ScheduledDate != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, "scheduled_date must be RFC3339")
			return
		}
		scheduled = &t
	}
	id, err := h.pickups.Create(c.Request.Context(), pickup.CreateCommand{
		RequesterID:       callerID(c),
		RequesterName:     callerName(c),
		Address:           req.Address,
		WasteType:         pickup.WasteType(req.WasteType),
		FoodBoxes:         req.FoodBoxes,
		Bottles:           req.Bottles,
		OtherDesc:         req.OtherDesc,
		Images:            req.Images,
		Priority:          pickup.Priority(req.Priority),
		ScheduledDate:     scheduled,
		TimeSlot:          req.TimeSlot,
		EstimatedWeightKg: req.WeightKg,
		PickupPoint:       types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		DropoffPoint:      types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pickup_id": id, "status": pickup.StatusPendingReview})
}

func (h *PickupHandler) Get(c *gin.Context) {
	p, err := h.pickups.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	caller := callerID(c)
	owner := p.RequesterID == caller
	assigned := p.AgentID != nil && *p.AgentID == caller
	if !owner && !assigned && callerRole(c) != "admin" {
		writeError(c, http.StatusForbidden, "not your pickup")
		return
	}
	c.JSON(http.StatusOK, pickupJSON(p))
}

func (h *PickupHandler) List(c *gin.Context) {
	items, err := h.pickups.ListByRequester(c.Request.Context(), callerID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pickups": pickupListJSON(items)})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *PickupHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	err := h.pickups.Cancel(c.Request.Context(), pickup.CancelCommand{
		PickupID: types.ID(c.Param("id")),
		Actor:    pickup.ActorRequester,
		ActorID:  callerID(c),
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": pickup.StatusCancelled})
}

type rateReq struct {
	Score  int    `json:"score" binding:"required,min=1,max=5"`
	Review string `json:"review"`
}

func (h *PickupHandler) Rate(c *gin.Context) {
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	err := h.pickups.Rate(c.Request.Context(), pickup.RateCommand{
		PickupID:    types.ID(c.Param("id")),
		RequesterID: callerID(c),
		Score:       req.Score,
		Review:      req.Review,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rated": true})
}
