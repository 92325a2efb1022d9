package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/database"
	"tripmate/services"
	"tripmate/sessions"
)

type fakePlans struct {
	mu      sync.Mutex
	plans   map[string]*database.Plan
	saveErr error
	pingErr error
}

func newFakePlans() *fakePlans {
	return &fakePlans{plans: map[string]*database.Plan{}}
}

func (f *fakePlans) SavePlan(_ context.Context, p *database.Plan) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p.CreatedAt = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	cp := *p
	f.plans[p.ID] = &cp
	return nil
}

func (f *fakePlans) GetPlan(_ context.Context, id string) (*database.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlans) Ping(context.Context) error { return f.pingErr }

type fakeOffers struct {
	synthetic bool
	rating    float64
	lastQuery services.Query
}

func (f *fakeOffers) FindFlights(_ context.Context, q services.Query) []services.FlightOffer {
	f.lastQuery = q
	return []services.FlightOffer{{
		Airline: "Delta Airlines", DepartureTime: "08:00", ArrivalTime: "20:10",
		Duration: "7h 10m", Price: 900, Synthetic: f.synthetic,
	}}
}

func (f *fakeOffers) FindHotels(_ context.Context, q services.Query) []services.HotelOffer {
	return []services.HotelOffer{{
		Name: "Hotel Lumiere", Location: "Paris", Rating: f.rating,
		Price: 150, TotalPrice: 450, Amenities: []string{"Wi-Fi"}, Synthetic: f.synthetic,
	}}
}

type fakeWeather struct{}

func (fakeWeather) Lookup(_ context.Context, destination string) services.WeatherInfo {
	return services.WeatherInfo{
		Destination: destination,
		Current:     "25°C, Clear sky",
		Timezone:    "Europe/Paris",
		Forecast: []services.ForecastDay{
			{Date: "2025-06-01", Description: "Light rain", High: 24, Low: 15, Precipitation: "60%"},
		},
	}
}

type fakePlanner struct {
	question string
}

func (f *fakePlanner) GenerateItinerary(_ context.Context, q services.Query, budget float64) string {
	return "Day 1: " + q.Destination
}

func (f *fakePlanner) AnswerQuestion(_ context.Context, question, destination, itinerary string, _ services.WeatherInfo) string {
	f.question = question
	return "Answer about " + destination
}

type failingChats struct{}

func (failingChats) Append(context.Context, string, ...sessions.Message) error {
	return errors.New("redis down")
}

func (failingChats) History(context.Context, string) ([]sessions.Message, error) {
	return nil, errors.New("redis down")
}

type testEnv struct {
	router  *gin.Engine
	plans   *fakePlans
	offers  *fakeOffers
	planner *fakePlanner
}

func newTestEnv(t *testing.T, chats sessions.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		plans:   newFakePlans(),
		offers:  &fakeOffers{rating: 4.0},
		planner: &fakePlanner{},
	}
	h := New(Deps{
		Plans:         env.plans,
		Chats:         chats,
		Offers:        env.offers,
		Weather:       fakeWeather{},
		Planner:       env.planner,
		DefaultOrigin: "NYC",
	})
	env.router = gin.New()
	h.Register(env.router.Group("/api"))
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createPlan(t *testing.T) PlanResponse {
	t.Helper()
	w := e.do(http.MethodPost, "/api/plan", gin.H{
		"destination":    "Paris",
		"departure_date": "2025-06-01",
		"return_date":    "2025-06-04",
		"budget":         2500,
		"travelers":      2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreatePlan(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.createPlan(t)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "NYC", resp.Origin)
	assert.Equal(t, "Paris", resp.Destination)
	assert.Equal(t, 2, resp.Travelers)
	assert.Equal(t, "Day 1: Paris", resp.Itinerary)
	assert.Equal(t, sourceLive, resp.Source)
	assert.Len(t, resp.Flights, 1)
	assert.Len(t, resp.Hotels, 1)
	assert.Contains(t, resp.Packing, "Umbrella")

	assert.Equal(t, "NYC", env.offers.lastQuery.Origin)
	assert.Equal(t, 3, env.offers.lastQuery.Nights())

	stored, err := env.plans.GetPlan(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, sourceLive, stored.Source)
}

func TestCreatePlan_EstimatedSource(t *testing.T) {
	env := newTestEnv(t, nil)
	env.offers.synthetic = true

	resp := env.createPlan(t)
	assert.Equal(t, sourceEstimated, resp.Source)
	assert.True(t, resp.Flights[0].Synthetic)
}

func TestCreatePlan_DefaultsTravelers(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/plan", gin.H{
		"destination":    "Rome",
		"origin":         "lax",
		"departure_date": "2025-06-01",
		"return_date":    "2025-06-02",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Travelers)
	assert.Equal(t, "LAX", resp.Origin)
}

func TestCreatePlan_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing destination", gin.H{"departure_date": "2025-06-01", "return_date": "2025-06-04"}},
		{"blank destination", gin.H{"destination": "  ", "departure_date": "2025-06-01", "return_date": "2025-06-04"}},
		{"bad departure", gin.H{"destination": "Paris", "departure_date": "06/01/2025", "return_date": "2025-06-04"}},
		{"bad return", gin.H{"destination": "Paris", "departure_date": "2025-06-01", "return_date": "soon"}},
		{"return before departure", gin.H{"destination": "Paris", "departure_date": "2025-06-04", "return_date": "2025-06-01"}},
		{"same day", gin.H{"destination": "Paris", "departure_date": "2025-06-01", "return_date": "2025-06-01"}},
		{"too many travelers", gin.H{"destination": "Paris", "departure_date": "2025-06-01", "return_date": "2025-06-04", "travelers": 11}},
		{"negative travelers", gin.H{"destination": "Paris", "departure_date": "2025-06-01", "return_date": "2025-06-04", "travelers": -1}},
		{"negative budget", gin.H{"destination": "Paris", "departure_date": "2025-06-01", "return_date": "2025-06-04", "budget": -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/plan", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestCreatePlan_SaveFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.plans.saveErr = errors.New("db down")

	w := env.do(http.MethodPost, "/api/plan", gin.H{
		"destination": "Paris", "departure_date": "2025-06-01", "return_date": "2025-06-04",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreatePlan_EncodeFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.offers.rating = math.NaN()

	w := env.do(http.MethodPost, "/api/plan", gin.H{
		"destination": "Paris", "departure_date": "2025-06-01", "return_date": "2025-06-04",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to encode plan")
	assert.Empty(t, env.plans.plans)
}

func TestGetPlan(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createPlan(t)

	w := env.do(http.MethodGet, "/api/plans/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "25°C, Clear sky", resp.Weather.Current)
	assert.Equal(t, "Hotel Lumiere", resp.Hotels[0].Name)

	w = env.do(http.MethodGet, "/api/plans/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat(t *testing.T) {
	chats := sessions.NewMemoryStore()
	env := newTestEnv(t, chats)
	created := env.createPlan(t)

	w := env.do(http.MethodPost, "/api/plans/"+created.ID+"/chat", gin.H{"question": "Do I need a jacket?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Answer about Paris", resp.Answer)
	assert.Equal(t, "Do I need a jacket?", env.planner.question)

	w = env.do(http.MethodGet, "/api/plans/"+created.ID+"/chat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Messages []sessions.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Messages, 2)
	assert.Equal(t, sessions.RoleUser, history.Messages[0].Role)
	assert.Equal(t, sessions.RoleAssistant, history.Messages[1].Role)
}

func TestChat_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createPlan(t)

	w := env.do(http.MethodPost, "/api/plans/"+created.ID+"/chat", gin.H{"question": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/plans/missing/chat", gin.H{"question": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_StoreFailureStillAnswers(t *testing.T) {
	env := newTestEnv(t, failingChats{})
	created := env.createPlan(t)

	w := env.do(http.MethodPost, "/api/plans/"+created.ID+"/chat", gin.H{"question": "hi"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/plans/"+created.ID+"/chat", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDownloads(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createPlan(t)

	w := env.do(http.MethodGet, "/api/plans/"+created.ID+"/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = env.do(http.MethodGet, "/api/plans/"+created.ID+"/calendar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")

	w = env.do(http.MethodGet, "/api/plans/missing/pdf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWeather(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/weather?destination=Paris", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "packing_suggestions")

	w = env.do(http.MethodGet, "/api/weather", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	env.plans.pingErr = errors.New("refused")
	w = env.do(http.MethodGet, "/api/health", nil)
	assert.Contains(t, w.Body.String(), "error: refused")
}
