package services

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	calendarProductID = "-//TripMate//Travel Plan//EN"
	checkInHour       = 15
	checkOutHour      = 11
)

// BuildCalendar renders the plan as an iCalendar feed with the outbound
// flight and the hotel stay. The first flight and hotel offers are used.
func BuildCalendar(planID string, doc PlanDocument) string {
	loc := time.UTC
	if doc.Weather.Timezone != "" {
		if l, err := time.LoadLocation(doc.Weather.Timezone); err == nil {
			loc = l
		}
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)

	stamp := doc.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	if len(doc.Flights) > 0 {
		f := doc.Flights[0]
		start, end := flightWindow(doc.Departure, f)
		ev := cal.AddEvent(planID + "-flight@tripmate")
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(fmt.Sprintf("Flight to %s (%s)", doc.Destination, f.Airline))
		if doc.Origin != "" {
			ev.SetLocation(doc.Origin)
		}
		ev.SetDescription(flightDescription(f))
	}

	checkIn := dayAt(doc.Departure, checkInHour, 0, loc)
	checkOut := dayAt(doc.Return, checkOutHour, 0, loc)
	if !checkOut.After(checkIn) {
		checkOut = checkIn.Add(20 * time.Hour)
	}
	stay := cal.AddEvent(planID + "-stay@tripmate")
	stay.SetDtStampTime(stamp.UTC())
	stay.SetStartAt(checkIn)
	stay.SetEndAt(checkOut)
	summary := "Stay in " + doc.Destination
	location := doc.Destination
	if len(doc.Hotels) > 0 {
		h := doc.Hotels[0]
		summary = fmt.Sprintf("%s (%s)", h.Name, doc.Destination)
		location = h.Location
		stay.SetDescription(fmt.Sprintf("$%d/night, $%d total. %s",
			h.Price, h.TotalPrice, strings.Join(h.Amenities, ", ")))
	}
	stay.SetSummary(summary)
	stay.SetLocation(location)

	return cal.Serialize()
}

// flightWindow places the offer's HH:MM times on the departure date in UTC.
// An arrival earlier than the departure lands the next day.
func flightWindow(day time.Time, f FlightOffer) (time.Time, time.Time) {
	dh, dm := splitClock(f.DepartureTime)
	ah, am := splitClock(f.ArrivalTime)
	start := dayAt(day, dh, dm, time.UTC)
	end := dayAt(day, ah, am, time.UTC)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

func splitClock(hhmm string) (int, int) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, 0
	}
	return h, m
}

func dayAt(day time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}

func flightDescription(f FlightOffer) string {
	stops := "direct"
	if f.Stops > 0 {
		stops = fmt.Sprintf("%d stop(s)", f.Stops)
	}
	desc := fmt.Sprintf("%s, %s, %s. $%d total.", f.Airline, f.Duration, stops, f.Price)
	if f.Synthetic {
		desc += " Estimated offer."
	}
	return desc
}
