// README: Google Maps directions wrapper for pickup-to-warehouse routes.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/satya1234msn/clean-green-app-sub000/internal/types"
)

// RouteSummary is the provider-neutral shape consumed by the pickup module.
type RouteSummary struct {
	Waypoints   []types.Point
	DistanceKm  float64
	DurationMin float64
}

// RouteService handles interactions with the Google Maps API.
type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Route fetches driving directions from origin to dest. Callers treat this as
// opportunistic: on error they fall back to a straight-line estimate.
func (s *RouteService) Route(ctx context.Context, origin, dest types.Point) (RouteSummary, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return RouteSummary{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return RouteSummary{}, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	out := RouteSummary{
		DistanceKm:  float64(leg.Distance.Meters) / 1000.0,
		DurationMin: leg.Duration.Minutes(),
	}
	out.Waypoints = append(out.Waypoints, types.Point{Lat: leg.StartLocation.Lat, Lng: leg.StartLocation.Lng})
	for _, step := range leg.Steps {
		out.Waypoints = append(out.Waypoints, types.Point{Lat: step.EndLocation.Lat, Lng: step.EndLocation.Lng})
	}
	return out, nil
}
