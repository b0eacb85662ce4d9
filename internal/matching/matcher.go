// Package matching scores providers against service requests. Everything in
// this package is pure: bad input degrades to "no match" instead of failing
// the batch that contains it.
package matching

import (
	"errors"
	"math"
	"strings"
)

const (
	// BudgetTolerance is the absolute currency-unit distance between a
	// request budget and a provider rate that still counts as a match.
	BudgetTolerance = 200

	// MaxDistanceKM is the proximity cutoff for a location match.
	MaxDistanceKM = 5.0

	earthRadiusKM = 6371.0
)

var ErrInvalidCoordinate = errors.New("matching: coordinate is not a finite number")

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite numbers.
func (p Point) Valid() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) ||
		math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return ErrInvalidCoordinate
	}
	return nil
}

// ProviderCriteria is the matching-relevant slice of a provider profile.
type ProviderCriteria struct {
	Skills      []string
	ServiceRate *int64
	Location    *Point
}

// RequestCriteria is the matching-relevant slice of a service request.
type RequestCriteria struct {
	TypeOfWork string
	Budget     *int64
	Location   *Point
}

type MatchResult struct {
	BudgetMatch   bool `json:"budget_match"`
	SkillMatch    bool `json:"skill_match"`
	LocationMatch bool `json:"location_match"`
	IsMatch       bool `json:"is_match"`
}

// Match computes the three criteria independently; IsMatch is their union.
// A pair with none of the inputs available simply does not match.
func Match(p ProviderCriteria, r RequestCriteria) MatchResult {
	res := MatchResult{
		BudgetMatch:   budgetMatch(r.Budget, p.ServiceRate),
		SkillMatch:    skillMatch(p.Skills, r.TypeOfWork),
		LocationMatch: locationMatch(p.Location, r.Location),
	}
	res.IsMatch = res.BudgetMatch || res.SkillMatch || res.LocationMatch
	return res
}

func budgetMatch(budget, rate *int64) bool {
	if budget == nil || rate == nil {
		return false
	}
	diff := *budget - *rate
	if diff < 0 {
		diff = -diff
	}
	return diff <= BudgetTolerance
}

// skillMatch: any provider skill is a case-insensitive substring of the work
// description, or vice versa.
func skillMatch(skills []string, typeOfWork string) bool {
	work := strings.ToLower(strings.TrimSpace(typeOfWork))
	if work == "" {
		return false
	}
	for _, s := range skills {
		skill := strings.ToLower(strings.TrimSpace(s))
		if skill == "" {
			continue
		}
		if strings.Contains(work, skill) || strings.Contains(skill, work) {
			return true
		}
	}
	return false
}

func locationMatch(a, b *Point) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Valid() != nil || b.Valid() != nil {
		// ErrInvalidCoordinate is absorbed here: a bad coordinate makes
		// this one pair fail the location axis, nothing more.
		return false
	}
	return HaversineKM(*a, *b) <= MaxDistanceKM
}

// HaversineKM returns the great-circle distance between two points in km.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
