package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// RandomSource is the subset of *rand.Rand the generator draws from.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// MockGenerator produces plausible estimated offers when live data is not
// available. It never touches the network.
type MockGenerator struct {
	mu  sync.Mutex
	rng RandomSource
}

// NewMockGenerator wraps rng; a nil rng seeds one from the clock.
func NewMockGenerator(rng RandomSource) *MockGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockGenerator{rng: rng}
}

var mockAirlines = []string{"Delta", "United", "American", "Southwest", "JetBlue"}

var mockAmenitySets = [][]string{
	{"Wi-Fi", "Pool", "Gym", "Restaurant", "Bar"},
	{"Wi-Fi", "Breakfast", "Parking", "Room Service"},
	{"Wi-Fi", "Spa", "Restaurant", "Conference Room"},
	{"Wi-Fi", "Pool", "Breakfast", "Airport Shuttle"},
}

// between returns an int in [lo, hi].
func (g *MockGenerator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

// Flights returns three estimated offers priced $300-800 per traveler.
func (g *MockGenerator) Flights(q Query) []FlightOffer {
	g.mu.Lock()
	defer g.mu.Unlock()

	travelers := q.travelers()
	flights := make([]FlightOffer, 0, maxReturnedOffers)
	for i := 0; i < maxReturnedOffers; i++ {
		airline := mockAirlines[g.rng.Intn(len(mockAirlines))]
		depHour := g.between(6, 22)
		hours := g.between(2, 8)
		minutes := g.between(0, 59)
		stops := g.between(0, 2)
		price := g.between(300, 800) * travelers

		flights = append(flights, FlightOffer{
			Airline:       airline,
			DepartureTime: fmt.Sprintf("%02d:00", depHour),
			ArrivalTime:   fmt.Sprintf("%02d:%02d", (depHour+hours)%24, minutes),
			Duration:      fmt.Sprintf("%dh %dm", hours, minutes),
			Stops:         stops,
			Price:         price,
			Synthetic:     true,
		})
	}
	return flights
}

// Hotels returns three estimated hotels at $80-300 a night.
func (g *MockGenerator) Hotels(q Query) []HotelOffer {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := []string{
		q.Destination + " Grand Hotel",
		q.Destination + " Plaza",
		"The " + q.Destination + " Inn",
		"Luxury Suites " + q.Destination,
	}
	nights := q.Nights()

	hotels := make([]HotelOffer, 0, maxReturnedOffers)
	for i := 0; i < maxReturnedOffers; i++ {
		name := names[g.rng.Intn(len(names))]
		rating := roundRating(3.0 + g.rng.Float64()*2.0)
		perNight := g.between(80, 300)
		amenities := mockAmenitySets[g.rng.Intn(len(mockAmenitySets))]

		hotels = append(hotels, HotelOffer{
			Name:       name,
			Location:   "Downtown " + q.Destination,
			Rating:     rating,
			Price:      perNight,
			TotalPrice: perNight * nights,
			Amenities:  append([]string(nil), amenities...),
			Synthetic:  true,
		})
	}
	return hotels
}
