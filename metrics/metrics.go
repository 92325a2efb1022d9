package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts marketplace, weather and LLM calls by outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_upstream_requests_total",
		Help: "Calls made to third-party APIs, labelled by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_token_refreshes_total",
		Help: "Amadeus client-credentials exchanges, labelled by outcome",
	}, []string{"outcome"})

	// Fallbacks counts how often synthetic offers replaced live data.
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_offer_fallbacks_total",
		Help: "Synthetic offer fallbacks, labelled by kind (flights, hotels) and reason",
	}, []string{"kind", "reason"})

	PlansCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmate_plans_created_total",
		Help: "Trip plans generated, labelled by data source (live, estimated)",
	}, []string{"source"})
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
