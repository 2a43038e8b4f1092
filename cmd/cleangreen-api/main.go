// README: Entry point; loads config, wires services, starts HTTP server and the dispatch sweeper.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/satya1234msn/clean-green-app-sub000/internal/config"
	"github.com/satya1234msn/clean-green-app-sub000/internal/events"
	httptransport "github.com/satya1234msn/clean-green-app-sub000/internal/http"
	"github.com/satya1234msn/clean-green-app-sub000/internal/infra"
	"github.com/satya1234msn/clean-green-app-sub000/internal/logger"
	"github.com/satya1234msn/clean-green-app-sub000/internal/maps"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/agent"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/dispatch"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/notify"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/pickup"
	"github.com/satya1234msn/clean-green-app-sub000/internal/modules/rewards"
	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// routePlanner adapts the maps directions wrapper to the pickup module's
// planner seam without the maps package importing pickup.
type routePlanner struct {
	routes *maps.RouteService
}

func (a routePlanner) Route(ctx context.Context, origin, dest types.Point) (pickup.Route, error) {
	s, err := a.routes.Route(ctx, origin, dest)
	if err != nil {
		return pickup.Route{}, err
	}
	return pickup.Route{Waypoints: s.Waypoints, DistanceKm: s.DistanceKm, DurationMin: s.DurationMin}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password)
	defer func() { _ = redisClient.Close() }()

	notifier := notify.NewNotifier(notify.NewRedisTransport(redisClient), log)

	var completionPub pickup.CompletionPublisher
	if cfg.AMQP.URL != "" {
		conn, err := infra.NewRabbit(cfg.AMQP.URL)
		if err != nil {
			log.Fatal("connect rabbitmq", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()
		pub, err := events.NewPublisher(conn, log)
		if err != nil {
			log.Fatal("declare events exchange", zap.Error(err))
		}
		completionPub = pub
	} else {
		log.Warn("CLEANGREEN_AMQP_URL not set; completion events disabled")
	}

	var planner pickup.RoutePlanner
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal("init maps client", zap.Error(err))
		}
		planner = routePlanner{routes: routeSvc}
	} else {
		log.Warn("GOOGLE_MAPS_API_KEY not set; falling back to straight-line distances")
	}

	rewardStore := rewards.NewPGStore(dbPool)
	rewardSvc := rewards.NewService(rewardStore, cfg.Rewards.ExpiryDays)

	pickupStore := pickup.NewPGStore(dbPool)
	pickupSvc := pickup.NewService(pickupStore, pickup.Deps{
		Routes:   planner,
		Rewards:  rewardSvc,
		Events:   completionPub,
		Notifier: notifier,
		Log:      log,
	})

	agentStore := agent.NewStore(redisClient)
	agentSvc := agent.NewService(agentStore)

	dispatchStore := dispatch.NewRedisStore(redisClient)
	dispatchSvc := dispatch.NewService(dispatchStore, pickupSvc, agentSvc, notifier, cfg.Dispatch, log)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Pickups:     pickupSvc,
		Dispatch:    dispatchSvc,
		Agents:      agentSvc,
		Rewards:     rewardSvc,
		JWTSecret:   cfg.Auth.JWTSecret,
		Development: cfg.Development,
		Log:         log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go dispatchSvc.RunSweeper(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", zap.Error(err))
	}
}
