// README: Shared handler utilities: identity accessors, error mapping, DTOs.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satya1234msn/clean-green-app-sub000/internal/http/middleware"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/agent"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/pickup"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/rewards"
	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

func callerID(c *gin.Context) types.ID {
	return types.ID(c.GetString(middleware.ContextUserID))
}

func callerName(c *gin.Context) string {
	return c.GetString(middleware.ContextUserName)
}

func callerRole(c *gin.Context) string {
	return c.GetString(middleware.ContextRole)
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// writeServiceError maps the module error taxonomy onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pickup.ErrBadRequest), errors.Is(err, agent.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pickup.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, pickup.ErrNotFound), errors.Is(err, rewards.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, pickup.ErrConflict), errors.Is(err, rewards.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, pickup.ErrUnavailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func pickupJSON(p *pickup.Pickup) gin.H {
	out := gin.H{
		"id":             p.ID,
		"requester_id":   p.RequesterID,
		"requester_name": p.RequesterName,
		"address":        p.Address,
		"waste_type":     p.WasteType,
		"food_boxes":     p.FoodBoxes,
		"bottles":        p.Bottles,
		"other_desc":     p.OtherDesc,
		"images":         p.Images,
		"priority":       p.Priority,
		"time_slot":      p.TimeSlot,
		"status":         p.Status,
		"weight_kg":      p.EstimatedWeightKg,
		"points":         p.Points,
		"earnings":       p.Earnings,
		"distance_km":    p.DistanceKm,
		"pickup_point":   p.PickupPoint,
		"dropoff_point":  p.DropoffPoint,
		"created_at":     p.CreatedAt,
	}
	if p.AgentID != nil {
		out["agent_id"] = *p.AgentID
	}
	if p.ScheduledDate != nil {
		out["scheduled_date"] = p.ScheduledDate.Format(time.RFC3339)
	}
	if p.Approval != nil {
		out["approval"] = gin.H{
			"admin_id": p.Approval.AdminID,
			"rejected": p.Approval.Rejected,
			"reason":   p.Approval.Reason,
			"at":       p.Approval.At,
		}
	}
	if p.Route != nil {
		out["route"] = gin.H{
			"waypoints":    p.Route.Waypoints,
			"distance_km":  p.Route.DistanceKm,
			"duration_min": p.Route.DurationMin,
		}
	}
	if p.Rating != nil {
		out["rating"] = gin.H{"score": p.Rating.Score, "review": p.Rating.Review, "at": p.Rating.At}
	}
	if len(p.Timeline) > 0 {
		timeline := make([]gin.H, len(p.Timeline))
		for i, e := range p.Timeline {
			entry := gin.H{"status": e.Status, "note": e.Note, "at": e.At}
			if e.Location != nil {
				entry["location"] = e.Location
			}
			timeline[i] = entry
		}
		out["timeline"] = timeline
	}
	if p.CompletedAt != nil {
		out["completed_at"] = p.CompletedAt
	}
	return out
}

func pickupListJSON(items []*pickup.Pickup) []gin.H {
	out := make([]gin.H, len(items))
	for i, p := range items {
		out[i] = pickupJSON(p)
	}
	return out
}
