package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxAmenities = 5

var defaultAmenities = []string{"Wi-Fi", "Breakfast"}

// parseDuration converts ISO 8601 duration (PT5H30M, P1DT2H) to human
// readable (5h 30m, 1d 2h)
func parseDuration(iso string) string {
	if iso == "" {
		return ""
	}
	iso = strings.TrimPrefix(iso, "P")
	parts := make([]string, 0, 3)
	if d := strings.Index(iso, "D"); d >= 0 {
		parts = append(parts, iso[:d]+"d")
		iso = iso[d+1:]
	}
	iso = strings.TrimPrefix(iso, "T")
	for _, unit := range []string{"H", "M"} {
		if i := strings.Index(iso, unit); i >= 0 {
			parts = append(parts, iso[:i]+strings.ToLower(unit))
			iso = iso[i+1:]
		}
	}
	return strings.Join(parts, " ")
}

// clockTime extracts HH:MM from an upstream local timestamp like
// 2025-06-01T10:35:00.
func clockTime(at string) (string, error) {
	idx := strings.Index(at, "T")
	if idx < 0 || len(at) < idx+6 {
		return "", fmt.Errorf("unexpected timestamp %q", at)
	}
	return at[idx+1 : idx+6], nil
}

func parsePrice(s string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if price < 0 {
		return 0, fmt.Errorf("negative price %q", s)
	}
	return price, nil
}

func roundPrice(p float64) int {
	return int(math.Round(p))
}

func roundRating(r float64) float64 {
	r = math.Max(0, math.Min(5, r))
	return math.Round(r*10) / 10
}

var ratingCategories = map[string]float64{
	"ECONOMY":  2.0,
	"STANDARD": 3.0,
	"SUPERIOR": 4.0,
	"DELUXE":   5.0,
}

const defaultRating = 3.0

// hotelRating accepts the rating as sent upstream: a number, a numeric
// string ("4") or a category ("SUPERIOR"). Unknown categories score 3.0.
func hotelRating(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultRating
	}
	if r, err := strconv.ParseFloat(raw, 64); err == nil {
		return roundRating(r)
	}
	if r, ok := ratingCategories[strings.ToUpper(raw)]; ok {
		return r
	}
	return defaultRating
}

// formatAmenities turns upstream tokens like AIR_CONDITIONING into
// "Air Conditioning", keeping at most five.
func formatAmenities(raw []string) []string {
	title := cases.Title(language.English)
	amenities := lo.FilterMap(raw, func(a string, _ int) (string, bool) {
		a = strings.TrimSpace(strings.ReplaceAll(a, "_", " "))
		if a == "" {
			return "", false
		}
		return title.String(a), true
	})
	if len(amenities) == 0 {
		return append([]string(nil), defaultAmenities...)
	}
	if len(amenities) > maxAmenities {
		amenities = amenities[:maxAmenities]
	}
	return amenities
}

// airlineName returns full airline name from IATA code. Unknown codes are
// returned unchanged.
func airlineName(code string) string {
	names := map[string]string{
		"AA": "American Airlines",
		"UA": "United Airlines",
		"DL": "Delta Airlines",
		"B6": "JetBlue",
		"WN": "Southwest",
		"AS": "Alaska Airlines",
		"AC": "Air Canada",
		"LH": "Lufthansa",
		"BA": "British Airways",
		"AF": "Air France",
		"KL": "KLM",
		"IB": "Iberia",
		"TK": "Turkish Airlines",
		"EK": "Emirates",
		"QR": "Qatar Airways",
		"EY": "Etihad Airways",
		"LX": "Swiss International Air Lines",
		"SQ": "Singapore Airlines",
		"NH": "ANA",
		"JL": "Japan Airlines",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return code
}
