// internal/matching/ranker.go
package matching

import (
	"math"
	"sort"
	"strings"
	"time"
)

type SortBy string

const (
	SortRelevance  SortBy = "relevance"
	SortBudgetLow  SortBy = "budget-low"
	SortBudgetHigh SortBy = "budget-high"
	SortDate       SortBy = "date"
	SortReviews    SortBy = "reviews"
)

// Candidate is one rankable entry: a job surfaced to a provider, or a
// provider surfaced to a client. Callers fill whatever fields they have;
// zero values never disqualify a candidate by themselves.
type Candidate struct {
	ID          string
	Name        string
	Description string // work description / about text
	ServiceType string
	Skills      []string
	City        string

	Rating      float64
	ReviewCount int
	Rate        int64 // provider rate or request budget, numeric sort key

	Verified bool
	Online   bool

	PostedAt  time.Time
	BaseScore float64 // upstream recommendation score, if any
}

// Anchor is the profile or request the candidates are ranked against.
type Anchor struct {
	Skills []string
	// Sweet-spot budget range for the +2 boost.
	SweetSpotMin int64
	SweetSpotMax int64
}

type Filters struct {
	Search       string
	ServiceType  string
	Location     string
	MinRating    float64
	MaxRate      int64 // 0 = no cap
	VerifiedOnly bool
	TopRated     bool // rating >= 4.5
	AvailableNow bool
}

const topRatedThreshold = 4.5

// Rank filters, scores and orders candidates. The input slice is not
// modified; ties keep their input order (stable sort).
func Rank(candidates []Candidate, anchor Anchor, f Filters, sortBy SortBy, now time.Time) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if matchesFilters(c, f) {
			out = append(out, c)
		}
	}

	switch sortBy {
	case SortBudgetLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	case SortBudgetHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rate > out[j].Rate })
	case SortDate:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	case SortReviews:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ReviewCount > out[j].ReviewCount })
	default: // relevance
		scores := make([]float64, len(out))
		for i, c := range out {
			scores[i] = Score(c, anchor, now)
		}
		sort.SliceStable(out, func(i, j int) bool {
			if scores[i] != scores[j] {
				return scores[i] > scores[j]
			}
			return out[i].PostedAt.After(out[j].PostedAt)
		})
	}
	return out
}

// Score computes the composite recommendation score: the upstream base score
// plus recency, budget sweet-spot and skill-overlap boosts.
func Score(c Candidate, anchor Anchor, now time.Time) float64 {
	score := nz(c.BaseScore)

	if !c.PostedAt.IsZero() {
		age := now.Sub(c.PostedAt)
		switch {
		case age < 24*time.Hour:
			score += 3
		case age < 72*time.Hour:
			score += 2
		case age < 7*24*time.Hour:
			score += 1
		}
	}

	if anchor.SweetSpotMax > 0 && c.Rate >= anchor.SweetSpotMin && c.Rate <= anchor.SweetSpotMax {
		score += 2
	}

	if skillOverlap(anchor.Skills, c) {
		score += 2
	}

	return score
}

func skillOverlap(anchorSkills []string, c Candidate) bool {
	hay := strings.ToLower(c.Description + " " + c.ServiceType + " " + strings.Join(c.Skills, " "))
	for _, s := range anchorSkills {
		skill := strings.ToLower(strings.TrimSpace(s))
		if skill != "" && strings.Contains(hay, skill) {
			return true
		}
	}
	return false
}

func matchesFilters(c Candidate, f Filters) bool {
	if f.ServiceType != "" && !strings.EqualFold(c.ServiceType, f.ServiceType) {
		return false
	}
	if f.MinRating > 0 && nz(c.Rating) < f.MinRating {
		return false
	}
	if f.MaxRate > 0 && c.Rate > f.MaxRate {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(c.City), strings.ToLower(f.Location)) {
		return false
	}
	if f.VerifiedOnly && !c.Verified {
		return false
	}
	if f.TopRated && nz(c.Rating) < topRatedThreshold {
		return false
	}
	if f.AvailableNow && !c.Online {
		return false
	}
	if f.Search != "" && !matchesSearch(c, f.Search) {
		return false
	}
	return true
}

// matchesSearch: every token of the query must appear somewhere in the
// candidate's name, skills or description.
func matchesSearch(c Candidate, query string) bool {
	hay := strings.ToLower(c.Name + " " + c.Description + " " + c.ServiceType + " " + strings.Join(c.Skills, " "))
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(hay, tok) {
			return false
		}
	}
	return true
}

// nz maps NaN/Inf to 0 so malformed numeric input never poisons a sort key.
func nz(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
