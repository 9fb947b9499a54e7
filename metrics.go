package conduit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "conduit"

// Metrics exports registry and processor state to Prometheus.
// A nil *Metrics records nothing.
type Metrics struct {
	networks      prometheus.Gauge
	validNetworks prometheus.Gauge
	conduits      prometheus.Gauge
	merges        prometheus.Counter
	splits        prometheus.Counter
	recovered     prometheus.Counter
	queued        *prometheus.GaugeVec
	tickDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		networks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "networks",
			Help:      "Number of registered networks.",
		}),
		validNetworks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "valid_networks",
			Help:      "Number of networks with at least one extract and one insert node.",
		}),
		conduits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "conduits",
			Help:      "Number of registered conduits.",
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "merges_total",
			Help:      "Networks folded into another network.",
		}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "splits_total",
			Help:      "Networks created by splitting a disconnected network.",
		}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "recovered_panics_total",
			Help:      "Queued items that panicked and were skipped.",
		}),
		queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queued_items",
			Help:      "Items drained by the last processor pass, by phase.",
		}, []string{"phase"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent draining the processor queue.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	for _, c := range []prometheus.Collector{
		m.networks, m.validNetworks, m.conduits,
		m.merges, m.splits, m.recovered,
		m.queued, m.tickDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	for p := range phaseCount {
		m.queued.WithLabelValues(p.String())
	}
	return m, nil
}

func (m *Metrics) setRegistry(s RegistryStats) {
	if m == nil {
		return
	}
	m.networks.Set(float64(s.Networks))
	m.validNetworks.Set(float64(s.ValidNetworks))
	m.conduits.Set(float64(s.Conduits))
}

func (m *Metrics) addMerges(n int) {
	if m == nil {
		return
	}
	m.merges.Add(float64(n))
}

func (m *Metrics) addSplits(n int) {
	if m == nil {
		return
	}
	m.splits.Add(float64(n))
}

func (m *Metrics) incRecovered() {
	if m == nil {
		return
	}
	m.recovered.Inc()
}

func (m *Metrics) setQueued(p Phase, n int) {
	if m == nil {
		return
	}
	m.queued.WithLabelValues(p.String()).Set(float64(n))
}

func (m *Metrics) observeTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
