package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
)

type Metrics struct {
	LinksOpened     *prometheus.CounterVec
	EntriesImported prometheus.Counter
	BlastRuns       *prometheus.CounterVec
	BlastRunning    prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on a private registry so several app
// instances (tests) can coexist.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		LinksOpened: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wasender_links_opened_total",
			Help: "Deep links handed to the host, by trigger.",
		}, []string{"trigger"}),
		EntriesImported: f.NewCounter(prometheus.CounterOpts{
			Name: "wasender_entries_imported_total",
			Help: "Entries accepted by bulk import.",
		}),
		BlastRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wasender_blast_runs_total",
			Help: "Finished blast runs by outcome.",
		}, []string{"outcome"}),
		BlastRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "wasender_blast_running",
			Help: "1 while a blast run is active.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
