package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tukangin-app/tukangin_be/internal/matching"
	"github.com/tukangin-app/tukangin_be/internal/models"
)

type RecommendationHandler struct {
	DB *gorm.DB
}

func NewRecommendationHandler(db *gorm.DB) *RecommendationHandler {
	return &RecommendationHandler{DB: db}
}

type jobRecommendation struct {
	Request models.ServiceRequest `json:"request"`
	Match   matching.MatchResult  `json:"match"`
	Score   float64               `json:"score"`
}

// RecommendedJobs surfaces open requests to the calling provider, matched
// against their profile and ranked.
func (h *RecommendationHandler) RecommendedJobs(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var profile models.ProviderProfile
	if err := h.DB.First(&profile, "user_id = ?", userID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Provider profile not found")
	}

	var requests []models.ServiceRequest
	if err := h.DB.
		Where("status = ? AND requester_id != ?", models.RequestStatusOpen, userID).
		Order("created_at DESC").Limit(200).
		Find(&requests).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch requests")
	}

	criteria := matching.ProviderCriteria{
		Skills:   profile.SkillList(),
		Location: pointOf(profile.Lat, profile.Lng),
	}
	if profile.ServiceRate > 0 {
		rate := profile.ServiceRate
		criteria.ServiceRate = &rate
	}

	results := make(map[string]matching.MatchResult, len(requests))
	byID := make(map[string]models.ServiceRequest, len(requests))
	candidates := make([]matching.Candidate, 0, len(requests))
	for _, req := range requests {
		res := matching.Match(criteria, matching.RequestCriteria{
			TypeOfWork: req.TypeOfWork,
			Budget:     req.BudgetPoint(),
			Location:   pointOf(req.Lat, req.Lng),
		})
		if !res.IsMatch {
			continue
		}
		id := req.ID.String()
		results[id] = res
		byID[id] = req

		cand := matching.Candidate{
			ID:          id,
			Name:        req.TypeOfWork,
			Description: req.Description,
			City:        req.City,
			PostedAt:    req.CreatedAt,
		}
		if b := req.BudgetPoint(); b != nil {
			cand.Rate = *b
		}
		candidates = append(candidates, cand)
	}

	anchor := matching.Anchor{Skills: profile.SkillList()}
	if profile.ServiceRate > 0 {
		anchor.SweetSpotMin = profile.ServiceRate - matching.BudgetTolerance
		anchor.SweetSpotMax = profile.ServiceRate + matching.BudgetTolerance
	}

	ranked := matching.Rank(candidates, anchor, filtersFromQuery(c), sortFromQuery(c), time.Now())

	out := make([]jobRecommendation, 0, len(ranked))
	now := time.Now()
	for _, cand := range ranked {
		out = append(out, jobRecommendation{
			Request: byID[cand.ID],
			Match:   results[cand.ID],
			Score:   matching.Score(cand, anchor, now),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
	})
}

type providerRecommendation struct {
	Profile models.ProviderProfile `json:"profile"`
	Match   matching.MatchResult   `json:"match"`
	Score   float64                `json:"score"`
}

// RecommendedProviders surfaces matching providers for one of the caller's
// open requests.
func (h *RecommendationHandler) RecommendedProviders(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	requestID, err := uuid.Parse(c.Query("request_id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "request_id is required")
	}

	var req models.ServiceRequest
	if err := h.DB.First(&req, "id = ?", requestID).Error; err != nil {
		return fail(c, fiber.StatusNotFound, "Request not found")
	}
	if req.RequesterID != userID {
		return fail(c, fiber.StatusForbidden, "Not your request")
	}

	var profiles []models.ProviderProfile
	if err := h.DB.Limit(500).Find(&profiles).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch providers")
	}

	reqCriteria := matching.RequestCriteria{
		TypeOfWork: req.TypeOfWork,
		Budget:     req.BudgetPoint(),
		Location:   pointOf(req.Lat, req.Lng),
	}

	results := make(map[string]matching.MatchResult, len(profiles))
	byID := make(map[string]models.ProviderProfile, len(profiles))
	candidates := make([]matching.Candidate, 0, len(profiles))
	for _, p := range profiles {
		criteria := matching.ProviderCriteria{
			Skills:   p.SkillList(),
			Location: pointOf(p.Lat, p.Lng),
		}
		if p.ServiceRate > 0 {
			rate := p.ServiceRate
			criteria.ServiceRate = &rate
		}
		res := matching.Match(criteria, reqCriteria)
		if !res.IsMatch {
			continue
		}
		id := p.UserID.String()
		results[id] = res
		byID[id] = p

		candidates = append(candidates, matching.Candidate{
			ID:          id,
			Name:        p.DisplayName,
			Description: p.About,
			ServiceType: p.ServiceType,
			Skills:      p.SkillList(),
			City:        p.City,
			Rating:      p.Rating,
			ReviewCount: p.ReviewCount,
			Rate:        p.ServiceRate,
			Verified:    p.Verified,
			Online:      p.Online,
			PostedAt:    p.CreatedAt,
		})
	}

	anchor := matching.Anchor{Skills: []string{req.TypeOfWork}}
	if b := req.BudgetPoint(); b != nil {
		anchor.SweetSpotMin = *b - matching.BudgetTolerance
		anchor.SweetSpotMax = *b + matching.BudgetTolerance
	}

	ranked := matching.Rank(candidates, anchor, filtersFromQuery(c), sortFromQuery(c), time.Now())

	out := make([]providerRecommendation, 0, len(ranked))
	now := time.Now()
	for _, cand := range ranked {
		out = append(out, providerRecommendation{
			Profile: byID[cand.ID],
			Match:   results[cand.ID],
			Score:   matching.Score(cand, anchor, now),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
	})
}

func pointOf(lat, lng *float64) *matching.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &matching.Point{Lat: *lat, Lng: *lng}
}

func filtersFromQuery(c *fiber.Ctx) matching.Filters {
	minRating, _ := strconv.ParseFloat(c.Query("min_rating"), 64)
	maxRate, _ := strconv.ParseInt(c.Query("max_rate"), 10, 64)
	return matching.Filters{
		Search:       c.Query("search"),
		ServiceType:  c.Query("service_type"),
		Location:     c.Query("location"),
		MinRating:    minRating,
		MaxRate:      maxRate,
		VerifiedOnly: c.QueryBool("verified"),
		TopRated:     c.QueryBool("top_rated"),
		AvailableNow: c.QueryBool("available_now"),
	}
}

func sortFromQuery(c *fiber.Ctx) matching.SortBy {
	switch matching.SortBy(c.Query("sort")) {
	case matching.SortBudgetLow:
		return matching.SortBudgetLow
	case matching.SortBudgetHigh:
		return matching.SortBudgetHigh
	case matching.SortDate:
		return matching.SortDate
	case matching.SortReviews:
		return matching.SortReviews
	default:
		return matching.SortRelevance
	}
}
