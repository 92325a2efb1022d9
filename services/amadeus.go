package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tripmate/config"
	"tripmate/metrics"
)

// ─── Types ────────────────────────────────────────────────────────────────────

type FlightOffer struct {
	Airline       string `json:"airline"`
	AirlineCode   string `json:"airline_code,omitempty"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	Duration      string `json:"duration"`
	Stops         int    `json:"stops"`
	Price         int    `json:"price"` // total for all travelers, USD
	Synthetic     bool   `json:"synthetic"`
}

type HotelOffer struct {
	Name       string   `json:"name"`
	HotelID    string   `json:"hotel_id,omitempty"`
	Location   string   `json:"location"`
	Rating     float64  `json:"rating"`
	Price      int      `json:"price"` // per night, USD
	TotalPrice int      `json:"total_price"`
	Amenities  []string `json:"amenities"`
	Synthetic  bool     `json:"synthetic"`
}

// Query is one trip search. The caller guarantees ReturnDate is after
// DepartureDate; an empty Origin means the configured default.
type Query struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    time.Time
	Travelers     int
}

// Nights is the stay length in days. Same-day trips count as one night so
// per-night prices stay defined.
func (q Query) Nights() int {
	n := int(math.Round(q.ReturnDate.Sub(q.DepartureDate).Hours() / 24))
	if n < 1 {
		return 1
	}
	return n
}

func (q Query) travelers() int {
	if q.Travelers < 1 {
		return 1
	}
	return q.Travelers
}

// AccessToken is a bearer credential and the instant the server said it
// expires.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// tokenSafetyMargin keeps a token from being used in its final minute.
const tokenSafetyMargin = 60 * time.Second

func (t AccessToken) usableAt(now time.Time) bool {
	return t.Value != "" && now.Add(tokenSafetyMargin).Before(t.ExpiresAt)
}

// ─── Amadeus Client ───────────────────────────────────────────────────────────

const (
	maxReturnedOffers = 3
	flightSearchMax   = 5
	hotelSearchRadius = 5
	offerCurrency     = "USD"
	dateLayout        = "2006-01-02"
)

var errNoOffers = errors.New("no offers returned")

type AmadeusClient struct {
	clientID      string
	clientSecret  string
	baseURL       string
	defaultOrigin string
	httpClient    *http.Client
	mock          *MockGenerator
	log           *zap.Logger
	now           func() time.Time

	mu    sync.Mutex
	token *AccessToken
}

type AmadeusOption func(*AmadeusClient)

func WithAmadeusHTTPClient(hc *http.Client) AmadeusOption {
	return func(c *AmadeusClient) { c.httpClient = hc }
}

func WithMockGenerator(g *MockGenerator) AmadeusOption {
	return func(c *AmadeusClient) { c.mock = g }
}

func WithClock(now func() time.Time) AmadeusOption {
	return func(c *AmadeusClient) { c.now = now }
}

func NewAmadeusClient(cfg config.Amadeus, log *zap.Logger, opts ...AmadeusOption) *AmadeusClient {
	c := &AmadeusClient{
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		baseURL:       cfg.AmadeusBaseURL(),
		defaultOrigin: cfg.DefaultOrigin,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mock == nil {
		c.mock = NewMockGenerator(nil)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.defaultOrigin == "" {
		c.defaultOrigin = "NYC"
	}

	if c.clientID == "" || c.clientSecret == "" {
		c.log.Warn("amadeus credentials not set, flight/hotel search will use estimated data")
	}
	return c
}

// ─── OAuth2 Token ─────────────────────────────────────────────────────────────

// Acquire returns a usable bearer token, exchanging client credentials when
// the cached one is missing or about to expire. ok is false when no token
// could be obtained; callers treat that as the signal to degrade.
func (c *AmadeusClient) Acquire(ctx context.Context) (AccessToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != nil && c.token.usableAt(now) {
		return *c.token, true
	}

	if c.clientID == "" || c.clientSecret == "" {
		return AccessToken{}, false
	}

	tok, err := c.exchangeToken(ctx, now)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeError).Inc()
		c.log.Error("amadeus token exchange failed", zap.Error(err))
		return AccessToken{}, false
	}
	metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeOK).Inc()

	c.token = &tok
	return tok, true
}

func (c *AmadeusClient) exchangeToken(ctx context.Context, now time.Time) (AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/security/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessToken{}, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AccessToken{}, fmt.Errorf("token request failed (%d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   *int   `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return AccessToken{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	if result.AccessToken == "" || result.ExpiresIn == nil {
		return AccessToken{}, errors.New("token response missing access_token or expires_in")
	}

	return AccessToken{
		Value:     result.AccessToken,
		ExpiresAt: now.Add(time.Duration(*result.ExpiresIn) * time.Second),
	}, nil
}

// get issues an authenticated GET and decodes the JSON body into out.
func (c *AmadeusClient) get(ctx context.Context, tok AccessToken, endpoint, path string, params url.Values, out any) error {
	err := c.doGet(ctx, tok, path, params, out)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	return err
}

func (c *AmadeusClient) doGet(ctx context.Context, tok AccessToken, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("amadeus error (%d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

// ─── Location ─────────────────────────────────────────────────────────────────

// ResolveLocation maps a free-text city name to its IATA city code.
func (c *AmadeusClient) ResolveLocation(ctx context.Context, city string) (string, bool) {
	tok, ok := c.Acquire(ctx)
	if !ok {
		return "", false
	}

	var resp struct {
		Data []struct {
			IATACode *string `json:"iataCode"`
		} `json:"data"`
	}
	params := url.Values{}
	params.Set("keyword", city)
	params.Set("max", "1")

	if err := c.get(ctx, tok, "cities", "/v1/reference-data/locations/cities", params, &resp); err != nil {
		c.log.Warn("city lookup failed", zap.String("city", city), zap.Error(err))
		return "", false
	}
	if len(resp.Data) == 0 || resp.Data[0].IATACode == nil || *resp.Data[0].IATACode == "" {
		c.log.Warn("no city code found", zap.String("city", city))
		return "", false
	}
	return *resp.Data[0].IATACode, true
}

// ─── Flight Search ────────────────────────────────────────────────────────────

// FindFlights returns up to three round-trip offers in upstream order. It
// never fails: any upstream problem yields three estimated offers instead.
func (c *AmadeusClient) FindFlights(ctx context.Context, q Query) []FlightOffer {
	tok, ok := c.Acquire(ctx)
	if !ok {
		return c.fallbackFlights(q, "no_token")
	}
	destination, ok := c.ResolveLocation(ctx, q.Destination)
	if !ok {
		return c.fallbackFlights(q, "no_location")
	}
	origin := q.Origin
	if origin == "" {
		origin = c.defaultOrigin
	}

	params := url.Values{}
	params.Set("originLocationCode", origin)
	params.Set("destinationLocationCode", destination)
	params.Set("departureDate", q.DepartureDate.Format(dateLayout))
	params.Set("returnDate", q.ReturnDate.Format(dateLayout))
	params.Set("adults", strconv.Itoa(q.travelers()))
	params.Set("max", strconv.Itoa(flightSearchMax))
	params.Set("currencyCode", offerCurrency)

	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, tok, "flight-offers", "/v2/shopping/flight-offers", params, &resp); err != nil {
		c.log.Error("flight search failed", zap.String("destination", q.Destination), zap.Error(err))
		return c.fallbackFlights(q, "upstream_error")
	}

	raw := resp.Data
	if len(raw) > maxReturnedOffers {
		raw = raw[:maxReturnedOffers]
	}

	flights := make([]FlightOffer, 0, len(raw))
	for i, offer := range raw {
		f, err := parseFlightOffer(offer)
		if err != nil {
			c.log.Warn("skipping flight offer", zap.Int("index", i), zap.Error(err))
			continue
		}
		flights = append(flights, f)
	}

	if len(flights) == 0 {
		return c.fallbackFlights(q, "no_valid_offers")
	}
	return flights
}

// Amadeus flight offers response structures. Pointers mark fields the
// normalizer must see before it accepts an offer.
type amadeusFlightOffer struct {
	Price       *amadeusPrice `json:"price"`
	Itineraries []struct {
		Segments []amadeusSegment `json:"segments"`
	} `json:"itineraries"`
}

// amadeusPrice keeps total raw; it normally arrives as a string but a
// number is accepted too.
type amadeusPrice struct {
	Total json.RawMessage `json:"total"`
}

type amadeusSegment struct {
	CarrierCode *string          `json:"carrierCode"`
	Duration    *string          `json:"duration"`
	Departure   *amadeusWaypoint `json:"departure"`
	Arrival     *amadeusWaypoint `json:"arrival"`
}

type amadeusWaypoint struct {
	IataCode string  `json:"iataCode"`
	At       *string `json:"at"`
}

func parseFlightOffer(data []byte) (FlightOffer, error) {
	var offer amadeusFlightOffer
	if err := json.Unmarshal(data, &offer); err != nil {
		return FlightOffer{}, fmt.Errorf("malformed offer: %w", err)
	}

	if offer.Price == nil || rawScalar(offer.Price.Total) == "" {
		return FlightOffer{}, errors.New("missing price.total")
	}
	price, err := parsePrice(rawScalar(offer.Price.Total))
	if err != nil {
		return FlightOffer{}, err
	}

	if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
		return FlightOffer{}, errors.New("missing outbound segments")
	}
	segments := offer.Itineraries[0].Segments
	first := segments[0]

	if first.CarrierCode == nil || first.Duration == nil ||
		first.Departure == nil || first.Departure.At == nil ||
		first.Arrival == nil || first.Arrival.At == nil {
		return FlightOffer{}, errors.New("incomplete outbound segment")
	}
	departure, err := clockTime(*first.Departure.At)
	if err != nil {
		return FlightOffer{}, err
	}
	arrival, err := clockTime(*first.Arrival.At)
	if err != nil {
		return FlightOffer{}, err
	}

	return FlightOffer{
		Airline:       airlineName(*first.CarrierCode),
		AirlineCode:   *first.CarrierCode,
		DepartureTime: departure,
		ArrivalTime:   arrival,
		Duration:      parseDuration(*first.Duration),
		Stops:         len(segments) - 1,
		Price:         roundPrice(price),
	}, nil
}

// ─── Hotel Search ─────────────────────────────────────────────────────────────

// FindHotels returns up to three priced hotels near the destination. Hotels
// are priced one at a time; a hotel without a usable offer is skipped.
func (c *AmadeusClient) FindHotels(ctx context.Context, q Query) []HotelOffer {
	tok, ok := c.Acquire(ctx)
	if !ok {
		return c.fallbackHotels(q, "no_token")
	}
	cityCode, ok := c.ResolveLocation(ctx, q.Destination)
	if !ok {
		return c.fallbackHotels(q, "no_location")
	}

	hotelIDs, err := c.hotelIDsByCity(ctx, tok, cityCode)
	if err != nil {
		c.log.Error("hotel list failed", zap.String("city_code", cityCode), zap.Error(err))
		return c.fallbackHotels(q, "upstream_error")
	}
	if len(hotelIDs) == 0 {
		c.log.Warn("no hotels found", zap.String("destination", q.Destination))
		return c.fallbackHotels(q, "no_hotels")
	}

	hotels := make([]HotelOffer, 0, len(hotelIDs))
	for _, id := range hotelIDs {
		h, err := c.hotelOffer(ctx, tok, id, q)
		if err != nil {
			c.log.Warn("skipping hotel", zap.String("hotel_id", id), zap.Error(err))
			continue
		}
		hotels = append(hotels, h)
	}

	if len(hotels) == 0 {
		return c.fallbackHotels(q, "no_valid_offers")
	}
	return hotels
}

func (c *AmadeusClient) hotelIDsByCity(ctx context.Context, tok AccessToken, cityCode string) ([]string, error) {
	params := url.Values{}
	params.Set("cityCode", cityCode)
	params.Set("radius", strconv.Itoa(hotelSearchRadius))
	params.Set("radiusUnit", "KM")
	params.Set("hotelSource", "ALL")

	var resp struct {
		Data []struct {
			HotelID *string `json:"hotelId"`
		} `json:"data"`
	}
	if err := c.get(ctx, tok, "hotels-by-city", "/v1/reference-data/locations/hotels/by-city", params, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, maxReturnedOffers)
	for _, h := range resp.Data {
		if len(ids) == maxReturnedOffers {
			break
		}
		if h.HotelID == nil || *h.HotelID == "" {
			continue
		}
		ids = append(ids, *h.HotelID)
	}
	return ids, nil
}

type amadeusHotelOffersResponse struct {
	Data []amadeusHotelOffers `json:"data"`
}

type amadeusHotelOffers struct {
	Hotel struct {
		HotelID   string          `json:"hotelId"`
		Name      *string         `json:"name"`
		Rating    json.RawMessage `json:"rating"`
		Amenities []string        `json:"amenities"`
		Address   *struct {
			CityName *string `json:"cityName"`
		} `json:"address"`
	} `json:"hotel"`
	Offers []struct {
		Price *amadeusPrice `json:"price"`
	} `json:"offers"`
}

func (c *AmadeusClient) hotelOffer(ctx context.Context, tok AccessToken, hotelID string, q Query) (HotelOffer, error) {
	params := url.Values{}
	params.Set("hotelIds", hotelID)
	params.Set("adults", strconv.Itoa(q.travelers()))
	params.Set("checkInDate", q.DepartureDate.Format(dateLayout))
	params.Set("checkOutDate", q.ReturnDate.Format(dateLayout))
	params.Set("roomQuantity", "1")
	params.Set("currency", offerCurrency)

	var resp amadeusHotelOffersResponse
	if err := c.get(ctx, tok, "hotel-offers", "/v3/shopping/hotel-offers", params, &resp); err != nil {
		return HotelOffer{}, err
	}
	if len(resp.Data) == 0 {
		return HotelOffer{}, errNoOffers
	}
	return normalizeHotel(resp.Data[0], q.Destination, q.Nights())
}

func normalizeHotel(item amadeusHotelOffers, destination string, nights int) (HotelOffer, error) {
	if len(item.Offers) == 0 {
		return HotelOffer{}, errNoOffers
	}
	price := item.Offers[0].Price
	if price == nil || rawScalar(price.Total) == "" {
		return HotelOffer{}, errors.New("missing offer price.total")
	}
	total, err := parsePrice(rawScalar(price.Total))
	if err != nil {
		return HotelOffer{}, err
	}
	if nights < 1 {
		nights = 1
	}

	name := destination + " Hotel"
	if item.Hotel.Name != nil && *item.Hotel.Name != "" {
		name = *item.Hotel.Name
	}
	location := destination
	if item.Hotel.Address != nil && item.Hotel.Address.CityName != nil && *item.Hotel.Address.CityName != "" {
		location = *item.Hotel.Address.CityName
	}

	return HotelOffer{
		Name:       name,
		HotelID:    item.Hotel.HotelID,
		Location:   location,
		Rating:     hotelRating(rawScalar(item.Hotel.Rating)),
		Price:      roundPrice(total / float64(nights)),
		TotalPrice: roundPrice(total),
		Amenities:  formatAmenities(item.Hotel.Amenities),
	}, nil
}

// rawScalar unwraps a value sent either as a JSON string or a number.
func rawScalar(msg json.RawMessage) string {
	if len(msg) == 0 || string(msg) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return string(msg)
}

// ─── Fallback ─────────────────────────────────────────────────────────────────

func (c *AmadeusClient) fallbackFlights(q Query, reason string) []FlightOffer {
	metrics.Fallbacks.WithLabelValues("flights", reason).Inc()
	c.log.Warn("using estimated flight data", zap.String("destination", q.Destination), zap.String("reason", reason))
	return c.mock.Flights(q)
}

func (c *AmadeusClient) fallbackHotels(q Query, reason string) []HotelOffer {
	metrics.Fallbacks.WithLabelValues("hotels", reason).Inc()
	c.log.Warn("using estimated hotel data", zap.String("destination", q.Destination), zap.String("reason", reason))
	return c.mock.Hotels(q)
}
