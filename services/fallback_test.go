package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFlightsRanges(t *testing.T) {
	g := NewMockGenerator(rand.New(rand.NewSource(7)))
	q := parisQuery(5, 2)

	for i := 0; i < 50; i++ {
		flights := g.Flights(q)
		require.Len(t, flights, 3)
		for _, f := range flights {
			assert.Contains(t, mockAirlines, f.Airline)
			assert.GreaterOrEqual(t, f.Price, 600)
			assert.LessOrEqual(t, f.Price, 1600)
			assert.GreaterOrEqual(t, f.Stops, 0)
			assert.LessOrEqual(t, f.Stops, 2)
			assert.True(t, f.Synthetic)
			assert.Regexp(t, `^([01]\d|2[0-2]):00$`, f.DepartureTime)
			assert.Regexp(t, `^[2-8]h \d{1,2}m$`, f.Duration)
		}
	}
}

func TestMockHotelsRanges(t *testing.T) {
	g := NewMockGenerator(rand.New(rand.NewSource(7)))
	q := parisQuery(4, 1)

	for i := 0; i < 50; i++ {
		hotels := g.Hotels(q)
		require.Len(t, hotels, 3)
		for _, h := range hotels {
			assert.GreaterOrEqual(t, h.Rating, 3.0)
			assert.LessOrEqual(t, h.Rating, 5.0)
			assert.GreaterOrEqual(t, h.Price, 80)
			assert.LessOrEqual(t, h.Price, 300)
			assert.Equal(t, h.Price*4, h.TotalPrice)
			assert.Equal(t, "Downtown Paris", h.Location)
			assert.Contains(t, h.Name, "Paris")
			assert.NotEmpty(t, h.Amenities)
			assert.True(t, h.Synthetic)
		}
	}
}

func TestMockGeneratorIsDeterministicForSeed(t *testing.T) {
	q := parisQuery(3, 1)
	a := NewMockGenerator(rand.New(rand.NewSource(99)))
	b := NewMockGenerator(rand.New(rand.NewSource(99)))

	assert.Equal(t, a.Flights(q), b.Flights(q))
	assert.Equal(t, a.Hotels(q), b.Hotels(q))
}

func TestMockHotelsAmenitiesAreCopies(t *testing.T) {
	g := NewMockGenerator(rand.New(rand.NewSource(1)))
	hotels := g.Hotels(parisQuery(2, 1))
	hotels[0].Amenities[0] = "changed"

	for _, set := range mockAmenitySets {
		assert.NotEqual(t, "changed", set[0])
	}
}
