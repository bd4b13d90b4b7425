package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunResult summarises one ingestion run of one platform.
type RunResult struct {
	Platform    string        `json:"platform"`
	Units       int           `json:"units"`
	UnitsFailed int           `json:"units_failed"`
	Fetched     int           `json:"fetched"`
	Saved       int           `json:"saved"`
	Duplicates  int           `json:"duplicates"`
	NoText      int           `json:"no_text"`
	Rejected    int           `json:"rejected"`
	Errors      int           `json:"errors"`
	Canceled    bool          `json:"canceled,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

func (r *RunResult) add(o Outcome) {
	switch o {
	case OutcomeSaved:
		r.Saved++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeNoText:
		r.NoText++
	case OutcomeRejected:
		r.Rejected++
	default:
		r.Errors++
	}
}

var (
	// itemsTotal counts candidate items by platform and outcome.
	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_ingest_items_total",
			Help: "Candidate posts processed by the ingestor, by outcome.",
		},
		[]string{"platform", "outcome"},
	)

	// runsTotal counts completed ingestion runs by platform.
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hazard_ingest_runs_total",
			Help: "Completed ingestion runs.",
		},
		[]string{"platform"},
	)
)

func init() {
	prometheus.MustRegister(itemsTotal, runsTotal)
}
