package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Collaborator round-trips by purpose and outcome (ok, error, unparsable)
	CollaboratorRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "callcoach_collaborator_requests_total",
		Help: "LLM collaborator requests by purpose and outcome",
	}, []string{"purpose", "outcome"})

	CollaboratorLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callcoach_collaborator_latency_seconds",
		Help:    "Latency of LLM collaborator requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"purpose"})

	NudgesGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callcoach_nudges_generated_total",
		Help: "Nudges added to a pending queue",
	})

	NudgesFiltered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callcoach_nudges_filtered_total",
		Help: "Nudge candidates dropped as duplicates or inside the cooldown",
	})

	NudgesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callcoach_nudges_dropped_total",
		Help: "Pending nudges evicted because the queue was full",
	})

	NudgesAcknowledged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callcoach_nudges_acknowledged_total",
		Help: "Nudges acknowledged as shown",
	})

	LeadScoreAdjustments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callcoach_lead_score_adjustments_total",
		Help: "Applied lead score adjustments",
	})

	CallsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callcoach_calls_started_total",
		Help: "Calls started",
	})

	CallsEnded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "callcoach_calls_ended_total",
		Help: "Calls ended and archived",
	})

	ActiveCalls = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "callcoach_active_calls",
		Help: "Calls currently in progress",
	})
)

func Init() {
	prometheus.MustRegister(
		CollaboratorRequests,
		CollaboratorLatency,
		NudgesGenerated,
		NudgesFiltered,
		NudgesDropped,
		NudgesAcknowledged,
		LeadScoreAdjustments,
		CallsStarted,
		CallsEnded,
		ActiveCalls,
	)
}
