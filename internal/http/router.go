// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satya1234msn/clean-green-app-sub000/internal/http/handlers"
	"github.com/satya1234msn/clean-green-app-sub000/internal/http/middleware"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/agent"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/dispatch"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/pickup"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/rewards"
)

type RouterDeps struct {
	Pickups     *pickup.Service
	Dispatch    *dispatch.Service
	Agents      *agent.Service
	Rewards     *rewards.Service
	JWTSecret   string
	Development bool
	Log         *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))
	r.Use(middleware.Metrics())
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pickupHandler := handlers.NewPickupHandler(deps.Pickups)
	adminHandler := handlers.NewAdminHandler(deps.Pickups, deps.Dispatch, deps.Log)
	agentHandler := handlers.NewAgentHandler(deps.Pickups, deps.Dispatch, deps.Agents)
	rewardHandler := handlers.NewRewardHandler(deps.Rewards)

	api := r.Group("/api", middleware.Auth(deps.JWTSecret))

	api.POST("/pickups", pickupHandler.Create)
	api.GET("/pickups", pickupHandler.List)
	api.GET("/pickups/:id", pickupHandler.Get)
	api.POST("/pickups/:id/cancel", pickupHandler.Cancel)
	api.POST("/pickups/:id/rating", pickupHandler.Rate)

	api.GET("/rewards", rewardHandler.ListMine)
	api.POST("/rewards/redeem", rewardHandler.Redeem)

	admin := api.Group("/admin", middleware.RequireRole("admin"))
	admin.GET("/pickups", adminHandler.List)
	admin.POST("/pickups/:id/approve", adminHandler.Approve)
	admin.POST("/pickups/:id/reject", adminHandler.Reject)

	agents := api.Group("/agent", middleware.RequireRole("agent"))
	agents.GET("/availability", agentHandler.GetAvailability)
	agents.PUT("/availability", agentHandler.SetAvailability)
	agents.PUT("/location", agentHandler.UpdateLocation)
	agents.GET("/pickups/available", agentHandler.ListAvailable)
	agents.GET("/pickups", agentHandler.ListMine)
	agents.POST("/pickups/:id/accept", agentHandler.Accept)
	agents.POST("/pickups/:id/reject", agentHandler.Reject)
	agents.POST("/pickups/:id/advance", agentHandler.Advance)
	agents.POST("/pickups/:id/complete", agentHandler.Complete)
	agents.POST("/pickups/:id/release", agentHandler.Release)

	return r
}
