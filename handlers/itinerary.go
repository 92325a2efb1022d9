package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripmate/database"
	"tripmate/services"
	"tripmate/sessions"
)

type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

type ChatResponse struct {
	PlanID string `json:"plan_id"`
	Answer string `json:"answer"`
}

// storedPlan is a plan row with its JSON columns decoded.
type storedPlan struct {
	row     *database.Plan
	weather services.WeatherInfo
	flights []services.FlightOffer
	hotels  []services.HotelOffer
	dep     time.Time
	ret     time.Time
}

// loadPlan fetches the :id plan and writes the error response itself when it
// returns false.
func (h *Handler) loadPlan(c *gin.Context) (*storedPlan, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing plan ID"})
		return nil, false
	}

	row, err := h.plans.GetPlan(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		return nil, false
	}
	if err != nil {
		h.log.Error("failed to load plan", zap.String("plan_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
		return nil, false
	}

	p, err := decodePlan(row)
	if err != nil {
		h.log.Error("stored plan is corrupt", zap.String("plan_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse stored plan"})
		return nil, false
	}
	return p, true
}

func decodePlan(row *database.Plan) (*storedPlan, error) {
	p := &storedPlan{row: row, weather: services.UnavailableWeather()}
	if row.WeatherJSON != "" {
		if err := json.Unmarshal([]byte(row.WeatherJSON), &p.weather); err != nil {
			return nil, fmt.Errorf("weather: %w", err)
		}
	}
	if row.FlightsJSON != "" {
		if err := json.Unmarshal([]byte(row.FlightsJSON), &p.flights); err != nil {
			return nil, fmt.Errorf("flights: %w", err)
		}
	}
	if row.HotelsJSON != "" {
		if err := json.Unmarshal([]byte(row.HotelsJSON), &p.hotels); err != nil {
			return nil, fmt.Errorf("hotels: %w", err)
		}
	}
	p.dep, _ = time.Parse(dateLayout, row.DepartureDate)
	p.ret, _ = time.Parse(dateLayout, row.ReturnDate)
	return p, nil
}

func (p *storedPlan) response() PlanResponse {
	return PlanResponse{
		ID:            p.row.ID,
		Origin:        p.row.Origin,
		Destination:   p.row.Destination,
		DepartureDate: p.row.DepartureDate,
		ReturnDate:    p.row.ReturnDate,
		Budget:        p.row.Budget,
		Travelers:     p.row.Travelers,
		Itinerary:     p.row.Itinerary,
		Weather:       p.weather,
		Packing:       services.PackingSuggestions(p.weather),
		Flights:       p.flights,
		Hotels:        p.hotels,
		Source:        p.row.Source,
		CreatedAt:     p.row.CreatedAt,
	}
}

func (p *storedPlan) document(generatedAt time.Time) services.PlanDocument {
	return services.PlanDocument{
		Origin:      p.row.Origin,
		Destination: p.row.Destination,
		Departure:   p.dep,
		Return:      p.ret,
		Travelers:   p.row.Travelers,
		Budget:      p.row.Budget,
		Flights:     p.flights,
		Hotels:      p.hotels,
		Weather:     p.weather,
		Packing:     services.PackingSuggestions(p.weather),
		Itinerary:   p.row.Itinerary,
		Estimated:   p.row.Source == sourceEstimated,
		GeneratedAt: generatedAt,
	}
}

func (h *Handler) GetPlan(c *gin.Context) {
	p, ok := h.loadPlan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.response())
}

// Chat answers a question about a stored plan and records the exchange.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required"})
		return
	}

	p, ok := h.loadPlan(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	asked := h.now()
	answer := h.planner.AnswerQuestion(ctx, req.Question, p.row.Destination, p.row.Itinerary, p.weather)

	if err := h.chats.Append(ctx, p.row.ID,
		sessions.Message{Role: sessions.RoleUser, Content: req.Question, CreatedAt: asked},
		sessions.Message{Role: sessions.RoleAssistant, Content: answer, CreatedAt: h.now()},
	); err != nil {
		h.log.Warn("failed to record chat", zap.String("plan_id", p.row.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, ChatResponse{PlanID: p.row.ID, Answer: answer})
}

func (h *Handler) ChatHistory(c *gin.Context) {
	p, ok := h.loadPlan(c)
	if !ok {
		return
	}
	history, err := h.chats.History(c.Request.Context(), p.row.ID)
	if err != nil {
		h.log.Error("failed to read chat history", zap.String("plan_id", p.row.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read chat history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan_id": p.row.ID, "messages": history})
}
