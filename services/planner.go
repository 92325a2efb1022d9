package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	itinerarySystemPrompt = `You are an expert travel planner. Create a detailed, realistic, and helpful travel itinerary
based on the provided destination, dates, budget, and number of travelers.
Include varied activities, local attractions, and dining options.
Ensure the itinerary is well-structured, practical, and stays within budget.`

	assistantSystemPrompt = `You are a helpful travel assistant with extensive knowledge about destinations worldwide.
Provide accurate, helpful, and concise answers to travel-related questions.
If you don't have specific information, provide general guidance based on
travel best practices. Be friendly and conversational in your responses.`

	itinerarySummaryLimit = 500
	weatherSummaryDays    = 3
)

// Planner builds the itinerary and chat prompts on top of a TextGenerator.
type Planner struct {
	llm TextGenerator
}

func NewPlanner(llm TextGenerator) *Planner {
	return &Planner{llm: llm}
}

func (p *Planner) GenerateItinerary(ctx context.Context, q Query, budget float64) string {
	return p.llm.Generate(ctx, itineraryPrompt(q, budget), itinerarySystemPrompt, defaultTemperature)
}

// AnswerQuestion answers a follow-up question with the trip as context.
func (p *Planner) AnswerQuestion(ctx context.Context, question, destination, itinerary string, weather WeatherInfo) string {
	facts := [][2]string{
		{"Destination", destination},
		{"Itinerary Summary", SummarizeItinerary(itinerary)},
		{"Weather", SummarizeWeather(weather)},
	}
	return p.llm.Generate(ctx, questionPrompt(question, facts), assistantSystemPrompt, defaultTemperature)
}

func itineraryPrompt(q Query, budget float64) string {
	return fmt.Sprintf(`Create a detailed travel itinerary for a trip to %s from %s to %s
with a budget of $%.0f for %d travelers.

The itinerary should include:
1. Daily activities and attractions to visit
2. Suggested times for each activity
3. Estimated costs for activities
4. Restaurant recommendations for each day

Format the itinerary as a day-by-day plan.`,
		q.Destination,
		q.DepartureDate.Format(dateLayout),
		q.ReturnDate.Format(dateLayout),
		budget,
		q.travelers())
}

func questionPrompt(question string, facts [][2]string) string {
	if len(facts) == 0 {
		return question
	}
	lines := lo.Map(facts, func(kv [2]string, _ int) string {
		return kv[0] + ": " + kv[1]
	})
	return fmt.Sprintf("Context information:\n%s\n\nQuestion: %s", strings.Join(lines, "\n"), question)
}

func SummarizeItinerary(itinerary string) string {
	runes := []rune(itinerary)
	if len(runes) > itinerarySummaryLimit {
		return string(runes[:itinerarySummaryLimit]) + "..."
	}
	return itinerary
}

func SummarizeWeather(w WeatherInfo) string {
	if !w.Available() {
		return "Weather information not available"
	}
	days := w.Forecast
	if len(days) > weatherSummaryDays {
		days = days[:weatherSummaryDays]
	}
	forecast := lo.Map(days, func(d ForecastDay, _ int) string {
		return fmt.Sprintf("%s: %s, %.0f°C/%.0f°C", d.Date, d.Description, d.High, d.Low)
	})
	return fmt.Sprintf("Current: %s. Forecast: %s", w.Current, strings.Join(forecast, ", "))
}
