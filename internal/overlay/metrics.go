package overlay

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional Prometheus-backed sink for the core's observer
// functors (spec §6). Constructing one and passing its methods through
// WithNetworkStatusObserver / WithCloseGroupObserver / WithMatrixChangedObserver
// does not make the core perform I/O itself: it only mutates in-memory
// counters, and scraping/exposition remains the caller's concern.
type Metrics struct {
	health          prometheus.Gauge
	closeGroupAdded prometheus.Counter
	closeGroupLost  prometheus.Counter
	uniqueNodes     prometheus.Gauge
}

// NewMetrics registers the overlay core's collectors against registerer
// and returns the bundle.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_routing_table_health_percent",
			Help: "Routing table size as a percentage of its configured cap.",
		}),
		closeGroupAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_close_group_nodes_added_total",
			Help: "Close-neighbourhood entries gained across all mutations.",
		}),
		closeGroupLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_close_group_nodes_removed_total",
			Help: "Close-neighbourhood entries lost across all mutations.",
		}),
		uniqueNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_group_matrix_unique_nodes",
			Help: "Current size of the group matrix's unique-nodes set.",
		}),
	}
	registerer.MustRegister(m.health, m.closeGroupAdded, m.closeGroupLost, m.uniqueNodes)
	return m
}

// NetworkStatus implements NetworkStatusFunctor.
func (m *Metrics) NetworkStatus(healthPct int) {
	m.health.Set(float64(healthPct))
}

// CloseGroupChanged implements CloseNodeReplacedFunctor.
func (m *Metrics) CloseGroupChanged(added, removed []NodeInfo) {
	m.closeGroupAdded.Add(float64(len(added)))
	m.closeGroupLost.Add(float64(len(removed)))
}

// MatrixChanged implements MatrixChangedFunctor.
func (m *Metrics) MatrixChanged(change MatrixChange) {
	m.uniqueNodes.Set(float64(len(change.NewUniqueIDs)))
}
