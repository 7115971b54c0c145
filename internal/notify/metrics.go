package notify

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSnapshot is a point-in-time copy of the delivery counters.
type MetricsSnapshot struct {
	TotalSent        int64            `json:"totalSent"`
	DeliveredViaLive int64            `json:"deliveredViaLive"`
	DeliveredViaPush int64            `json:"deliveredViaPush"`
	Stored           int64            `json:"stored"`
	Disabled         int64            `json:"disabled"`
	Failed           int64            `json:"failed"`
	ByType           map[string]int64 `json:"byType"`
}

// Metrics keeps resettable in-process counters and mirrors outcomes onto
// a prometheus counter vector. Reads have no side effects.
type Metrics struct {
	mu     sync.Mutex
	counts MetricsSnapshot

	outcomes *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		counts: MetricsSnapshot{ByType: map[string]int64{}},
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talko_notifications_total",
			Help: "Notification delivery attempts by outcome.",
		}, []string{"outcome", "type"}),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes)
	}
	return m
}

func (m *Metrics) record(typ Type, method Method) {
	m.mu.Lock()
	m.counts.TotalSent++
	m.counts.ByType[string(typ)]++
	switch method {
	case MethodSocket:
		m.counts.DeliveredViaLive++
	case MethodPush:
		m.counts.DeliveredViaPush++
	case MethodStored:
		m.counts.Stored++
	case MethodDisabled:
		m.counts.Disabled++
	case MethodNone:
		m.counts.Failed++
	}
	m.mu.Unlock()
	m.outcomes.WithLabelValues(string(method), string(typ)).Inc()
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.counts
	out.ByType = make(map[string]int64, len(m.counts.ByType))
	for k, v := range m.counts.ByType {
		out.ByType[k] = v
	}
	return out
}

// Reset zeroes the in-process counters. Prometheus counters are
// monotonic and left alone.
func (m *Metrics) Reset() {
	m.mu.Lock()
	m.counts = MetricsSnapshot{ByType: map[string]int64{}}
	m.mu.Unlock()
}
