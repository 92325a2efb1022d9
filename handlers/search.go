package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tripmate/database"
	"tripmate/metrics"
	"tripmate/services"
)

const (
	dateLayout   = "2006-01-02"
	maxTravelers = 10

	sourceLive      = "live"
	sourceEstimated = "estimated"
)

type PlanRequest struct {
	Destination   string  `json:"destination" binding:"required"`
	Origin        string  `json:"origin"`
	DepartureDate string  `json:"departure_date" binding:"required"`
	ReturnDate    string  `json:"return_date" binding:"required"`
	Budget        float64 `json:"budget" binding:"gte=0"`
	Travelers     int     `json:"travelers"`
}

type PlanResponse struct {
	ID            string                 `json:"id"`
	Origin        string                 `json:"origin"`
	Destination   string                 `json:"destination"`
	DepartureDate string                 `json:"departure_date"`
	ReturnDate    string                 `json:"return_date"`
	Budget        float64                `json:"budget"`
	Travelers     int                    `json:"travelers"`
	Itinerary     string                 `json:"itinerary"`
	Weather       services.WeatherInfo   `json:"weather"`
	Packing       []string               `json:"packing_suggestions"`
	Flights       []services.FlightOffer `json:"flights"`
	Hotels        []services.HotelOffer  `json:"hotels"`
	Source        string                 `json:"source"` // "live" or "estimated"
	CreatedAt     time.Time              `json:"created_at"`
}

// CreatePlan validates the trip, gathers itinerary, weather and offers, and
// stores the result.
func (h *Handler) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	req.Destination = strings.TrimSpace(req.Destination)
	req.Origin = strings.ToUpper(strings.TrimSpace(req.Origin))
	if req.Destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Destination is required"})
		return
	}
	if req.Origin == "" {
		req.Origin = h.origin
	}

	if req.Travelers == 0 {
		req.Travelers = 1
	}
	if req.Travelers < 1 || req.Travelers > maxTravelers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Travelers must be between 1 and 10"})
		return
	}

	depDate, err := time.Parse(dateLayout, req.DepartureDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid departure date format. Use YYYY-MM-DD"})
		return
	}
	retDate, err := time.Parse(dateLayout, req.ReturnDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid return date format. Use YYYY-MM-DD"})
		return
	}
	if !retDate.After(depDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Return date must be after departure date"})
		return
	}

	ctx := c.Request.Context()
	q := services.Query{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: depDate,
		ReturnDate:    retDate,
		Travelers:     req.Travelers,
	}

	itinerary := h.planner.GenerateItinerary(ctx, q, req.Budget)
	weather := h.weather.Lookup(ctx, req.Destination)
	flights := h.offers.FindFlights(ctx, q)
	hotels := h.offers.FindHotels(ctx, q)

	source := sourceLive
	if lo.SomeBy(flights, func(f services.FlightOffer) bool { return f.Synthetic }) ||
		lo.SomeBy(hotels, func(o services.HotelOffer) bool { return o.Synthetic }) {
		source = sourceEstimated
	}

	weatherJSON, flightsJSON, hotelsJSON, err := encodeColumns(weather, flights, hotels)
	if err != nil {
		h.log.Error("failed to encode plan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode plan"})
		return
	}

	plan := &database.Plan{
		ID:            uuid.New().String(),
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		Budget:        req.Budget,
		Travelers:     req.Travelers,
		Itinerary:     itinerary,
		WeatherJSON:   weatherJSON,
		FlightsJSON:   flightsJSON,
		HotelsJSON:    hotelsJSON,
		Source:        source,
	}
	if err := h.plans.SavePlan(ctx, plan); err != nil {
		h.log.Error("failed to save plan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save plan"})
		return
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = h.now()
	}

	metrics.PlansCreated.WithLabelValues(source).Inc()
	h.log.Info("plan created",
		zap.String("plan_id", plan.ID),
		zap.String("destination", plan.Destination),
		zap.String("source", source),
		zap.Int("flights", len(flights)),
		zap.Int("hotels", len(hotels)))

	c.JSON(http.StatusOK, PlanResponse{
		ID:            plan.ID,
		Origin:        plan.Origin,
		Destination:   plan.Destination,
		DepartureDate: plan.DepartureDate,
		ReturnDate:    plan.ReturnDate,
		Budget:        plan.Budget,
		Travelers:     plan.Travelers,
		Itinerary:     itinerary,
		Weather:       weather,
		Packing:       services.PackingSuggestions(weather),
		Flights:       flights,
		Hotels:        hotels,
		Source:        source,
		CreatedAt:     plan.CreatedAt,
	})
}

// encodeColumns renders the JSON columns of a plan row.
func encodeColumns(weather services.WeatherInfo, flights []services.FlightOffer, hotels []services.HotelOffer) (string, string, string, error) {
	w, err := json.Marshal(weather)
	if err != nil {
		return "", "", "", fmt.Errorf("encode weather: %w", err)
	}
	f, err := json.Marshal(flights)
	if err != nil {
		return "", "", "", fmt.Errorf("encode flights: %w", err)
	}
	o, err := json.Marshal(hotels)
	if err != nil {
		return "", "", "", fmt.Errorf("encode hotels: %w", err)
	}
	return string(w), string(f), string(o), nil
}
