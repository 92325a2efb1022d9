package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripmate/database"
	"tripmate/services"
	"tripmate/sessions"
)

type PlanStore interface {
	SavePlan(ctx context.Context, p *database.Plan) error
	GetPlan(ctx context.Context, id string) (*database.Plan, error)
	Ping(ctx context.Context) error
}

type OfferFinder interface {
	FindFlights(ctx context.Context, q services.Query) []services.FlightOffer
	FindHotels(ctx context.Context, q services.Query) []services.HotelOffer
}

type WeatherLookup interface {
	Lookup(ctx context.Context, destination string) services.WeatherInfo
}

type TripPlanner interface {
	GenerateItinerary(ctx context.Context, q services.Query, budget float64) string
	AnswerQuestion(ctx context.Context, question, destination, itinerary string, weather services.WeatherInfo) string
}

// Handler serves the /api routes.
type Handler struct {
	plans   PlanStore
	chats   sessions.Store
	offers  OfferFinder
	weather WeatherLookup
	planner TripPlanner
	origin  string
	log     *zap.Logger
	now     func() time.Time
}

type Deps struct {
	Plans         PlanStore
	Chats         sessions.Store
	Offers        OfferFinder
	Weather       WeatherLookup
	Planner       TripPlanner
	DefaultOrigin string
	Log           *zap.Logger
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Chats == nil {
		d.Chats = sessions.NewMemoryStore()
	}
	return &Handler{
		plans:   d.Plans,
		chats:   d.Chats,
		offers:  d.Offers,
		weather: d.Weather,
		planner: d.Planner,
		origin:  d.DefaultOrigin,
		log:     d.Log,
		now:     time.Now,
	}
}

func (h *Handler) Register(api gin.IRouter) {
	api.GET("/health", h.Health)
	api.GET("/weather", h.Weather)
	api.POST("/plan", h.CreatePlan)
	api.GET("/plans/:id", h.GetPlan)
	api.POST("/plans/:id/chat", h.Chat)
	api.GET("/plans/:id/chat", h.ChatHistory)
	api.GET("/plans/:id/pdf", h.DownloadPDF)
	api.GET("/plans/:id/calendar", h.DownloadCalendar)
}
