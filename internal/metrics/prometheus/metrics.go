// Package prometheus exports match-orchestration metrics: turn throughput,
// provider latency/cost, validation outcomes, and match lifecycle gauges.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arena"

var (
	// turnDuration is a histogram of time spent producing one turn, including
	// any adapter-level retries.
	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of one GenerateTurn call in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"turn_type", "phase"},
	)

	// turnsTotal is a counter of turns produced, by outcome.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns produced",
		},
		[]string{"turn_type", "status"}, // status: accepted, repaired, failed
	)

	// matchesActive is a gauge of currently running matches.
	matchesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matches_active",
			Help:      "Number of matches currently running",
		},
	)

	// matchDuration is a histogram of total match wall-clock duration.
	matchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Duration of a full match run in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"status"}, // status: completed, failed
	)

	// providerRequestDuration is a histogram of LLM provider API call duration.
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of LLM provider API calls in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// providerTokensTotal is a counter of tokens consumed by provider calls.
	providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed by provider calls",
		},
		[]string{"provider", "direction"}, // direction: input, output
	)

	// providerCostTotal is a counter of total cost from provider calls.
	providerCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cost_usd_total",
			Help:      "Total cost in USD from provider calls",
		},
		[]string{"provider"},
	)

	// validationsTotal is a counter of Validator outcomes.
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Total number of turn validations",
		},
		[]string{"turn_type", "status"}, // status: passed, failed
	)

	// repairAttemptsTotal counts uses of the bounded per-turn repair loop.
	repairAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repair_attempts_total",
			Help:      "Total number of repair-loop retries issued to a provider",
		},
		[]string{"turn_type"},
	)

	// voteResultsTotal counts round vote aggregation outcomes.
	voteResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_results_total",
			Help:      "Total number of round vote aggregation outcomes",
		},
		[]string{"result"}, // ACCEPT, AMEND, REJECT, DEADLOCK
	)

	// subscribersActive is a gauge of currently connected SSE subscribers.
	subscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_subscribers_active",
			Help:      "Number of currently connected match event subscribers",
		},
	)

	// subscribersDroppedTotal counts subscribers dropped for falling behind.
	subscribersDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_subscribers_dropped_total",
			Help:      "Total number of subscribers dropped for a full buffer",
		},
	)

	allMetrics = []prometheus.Collector{
		turnDuration,
		turnsTotal,
		matchesActive,
		matchDuration,
		providerRequestDuration,
		providerTokensTotal,
		providerCostTotal,
		validationsTotal,
		repairAttemptsTotal,
		voteResultsTotal,
		subscribersActive,
		subscribersDroppedTotal,
	}
)

// RecordTurn records one produced turn and its outcome.
func RecordTurn(turnType, phase, status string, durationSeconds float64) {
	turnDuration.WithLabelValues(turnType, phase).Observe(durationSeconds)
	turnsTotal.WithLabelValues(turnType, status).Inc()
}

// RecordMatchStart increments the active-match gauge.
func RecordMatchStart() { matchesActive.Inc() }

// RecordMatchEnd decrements the active-match gauge and records duration.
func RecordMatchEnd(status string, durationSeconds float64) {
	matchesActive.Dec()
	matchDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordProviderRequest records one provider call's latency and outcome.
func RecordProviderRequest(provider, status string, durationSeconds float64) {
	providerRequestDuration.WithLabelValues(provider, status).Observe(durationSeconds)
}

// RecordProviderUsage records token and cost accounting for one provider call.
func RecordProviderUsage(provider string, inputTokens, outputTokens int, costUSD float64) {
	if inputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
	if costUSD > 0 {
		providerCostTotal.WithLabelValues(provider).Add(costUSD)
	}
}

// RecordValidation records one Validator pass/fail outcome.
func RecordValidation(turnType, status string) {
	validationsTotal.WithLabelValues(turnType, status).Inc()
}

// RecordRepairAttempt records one repair-loop retry.
func RecordRepairAttempt(turnType string) {
	repairAttemptsTotal.WithLabelValues(turnType).Inc()
}

// RecordVoteResult records one round's vote aggregation outcome.
func RecordVoteResult(result string) {
	voteResultsTotal.WithLabelValues(result).Inc()
}

// RecordSubscriberConnected increments the active-subscriber gauge.
func RecordSubscriberConnected() { subscribersActive.Inc() }

// RecordSubscriberDisconnected decrements the active-subscriber gauge.
func RecordSubscriberDisconnected() { subscribersActive.Dec() }

// RecordSubscriberDropped counts a subscriber dropped for a full buffer.
func RecordSubscriberDropped() { subscribersDroppedTotal.Inc() }
