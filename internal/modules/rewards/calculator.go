// README: Pure earnings and points calculation from pickup attributes.
package rewards

import "math"

// Per-unit point values and the flat grant for unclassified waste.
const (
	pointsPerFoodBox = 10
	pointsPerBottle  = 15
	pointsOtherFlat  = 20
)

// Earnings formula rates, in whole currency units.
const (
	baseRate  = 50.0
	perKmRate = 2.0
	perKgRate = 5.0
)

type PointsInput struct {
	WasteType string // "food", "bottles", "other", "mixed"
	FoodBoxes int
	Bottles   int
}

type EarningsInput struct {
	DistanceKm        float64
	EstimatedWeightKg float64
}

// CalculatePoints derives reward points from waste attributes. Deterministic;
// zero inputs yield zero points.
func CalculatePoints(in PointsInput) int {
	switch in.WasteType {
	case "food":
		return in.FoodBoxes * pointsPerFoodBox
	case "bottles":
		return in.Bottles * pointsPerBottle
	case "other":
		return pointsOtherFlat
	case "mixed":
		return in.FoodBoxes*pointsPerFoodBox + in.Bottles*pointsPerBottle + pointsOtherFlat
	default:
		return 0
	}
}

// CalculateEarnings derives agent earnings: base rate plus distance and weight
// rates, rounded to the nearest whole currency unit.
func CalculateEarnings(in EarningsInput) int64 {
	return int64(math.Round(baseRate + in.DistanceKm*perKmRate + in.EstimatedWeightKg*perKgRate))
}
