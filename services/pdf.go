package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type PlanDocument struct {
	Origin      string
	Destination string
	Departure   time.Time
	Return      time.Time
	Travelers   int
	Budget      float64
	Flights     []FlightOffer
	Hotels      []HotelOffer
	Weather     WeatherInfo
	Packing     []string
	Itinerary   string
	Estimated   bool
	GeneratedAt time.Time
}

// GeneratePDFBytes renders the plan and returns raw bytes (no filesystem needed)
func GeneratePDFBytes(doc PlanDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 8,
			fmt.Sprintf("Generated by TripMate - Not a booking confirmation - Page %d", pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(100, 10, "TripMate", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "AI Travel Plan for "+tr(doc.Destination), "", 1, "L", false, 0, "")

	pdf.SetY(35)

	// ── Disclaimer ───────────────────────────────────────────
	pdf.SetFillColor(255, 248, 225)
	pdf.SetDrawColor(212, 168, 67)
	pdf.SetTextColor(130, 90, 20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetLineWidth(0.4)
	y := pdf.GetY()
	pdf.Rect(20, y, 170, 12, "FD")
	pdf.SetXY(23, y+2)
	disclaimer := "This is NOT a booking confirmation. Prices are subject to change. Please verify with providers before booking."
	if doc.Estimated {
		disclaimer = "ESTIMATED PRICES - live marketplace data was unavailable. This is NOT a booking confirmation."
	}
	pdf.MultiCell(164, 4, disclaimer, "", "C", false)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.Ln(6)

	sectionHeader := func(title string) {
		pdf.SetFillColor(13, 24, 37)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+title, "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(55, 7, tr(label), "", 0, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(115, 7, tr(value), "", 1, "L", false, 0, "")
	}

	// ── Trip Overview ─────────────────────────────────────────
	sectionHeader("Trip Overview")
	nights := Query{DepartureDate: doc.Departure, ReturnDate: doc.Return}.Nights()
	route := doc.Destination
	if doc.Origin != "" {
		route = fmt.Sprintf("%s -> %s -> %s", doc.Origin, doc.Destination, doc.Origin)
	}
	row("Route", route)
	row("Departure", doc.Departure.Format("02 Jan 2006 (Mon)"))
	row("Return", doc.Return.Format("02 Jan 2006 (Mon)"))
	row("Duration", fmt.Sprintf("%d nights", nights))
	row("Travelers", fmt.Sprintf("%d", doc.Travelers))
	row("Budget", fmt.Sprintf("$%.0f", doc.Budget))
	row("Generated", doc.GeneratedAt.UTC().Format("02 Jan 2006, 15:04 UTC"))
	pdf.Ln(4)

	// ── Flights ───────────────────────────────────────────────
	sectionHeader("Flight Options")
	for i, f := range doc.Flights {
		stops := "Direct"
		if f.Stops > 0 {
			stops = fmt.Sprintf("%d stop(s)", f.Stops)
		}
		row(fmt.Sprintf("%d. %s", i+1, f.Airline),
			fmt.Sprintf("%s - %s (%s, %s)  $%d total", f.DepartureTime, f.ArrivalTime, f.Duration, stops, f.Price))
	}
	pdf.Ln(4)

	// ── Hotels ────────────────────────────────────────────────
	sectionHeader("Hotel Options")
	for i, h := range doc.Hotels {
		row(fmt.Sprintf("%d. %s", i+1, h.Name),
			fmt.Sprintf("%s, %.1f / 5.0, $%d/night ($%d total)", h.Location, h.Rating, h.Price, h.TotalPrice))
		if len(h.Amenities) > 0 {
			row("", strings.Join(h.Amenities, ", "))
		}
	}
	pdf.Ln(4)

	// ── Weather ───────────────────────────────────────────────
	sectionHeader("Weather")
	row("Current", doc.Weather.Current)
	for _, d := range doc.Weather.Forecast {
		row(d.Date, fmt.Sprintf("%s, %.0f°C / %.0f°C, rain %s", d.Description, d.High, d.Low, d.Precipitation))
	}
	if len(doc.Packing) > 0 {
		row("Pack", strings.Join(doc.Packing, ", "))
	}
	pdf.Ln(4)

	// ── Itinerary ─────────────────────────────────────────────
	if doc.Itinerary != "" {
		sectionHeader("Itinerary")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 40, 40)
		pdf.MultiCell(170, 5, tr(doc.Itinerary), "", "L", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}
