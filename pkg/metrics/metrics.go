// Package metrics provides Prometheus instrumentation for a subagent
// session: PDU traffic, reconnects, updater refreshes, and SET
// transaction state. All methods are safe on a nil receiver so callers
// can leave metrics disabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "agentx"

// Metrics holds the collectors for one session, registered on a
// private registry.
type Metrics struct {
	registry *prometheus.Registry

	pdusReceived     *prometheus.CounterVec
	pdusSent         *prometheus.CounterVec
	malformedPDUs    prometheus.Counter
	reconnects       prometheus.Counter
	updaterRefreshes *prometheus.CounterVec
	openTransactions prometheus.Gauge
	snapshotBindings *prometheus.GaugeVec
}

// New creates a metric set under the given namespace ("agentx" when
// empty).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pdusReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdus_received_total",
			Help:      "PDUs received from the master, by type.",
		}, []string{"type"}),
		pdusSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdus_sent_total",
			Help:      "PDUs sent to the master, by type.",
		}, []string{"type"}),
		malformedPDUs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_pdus_total",
			Help:      "Inbound PDUs dropped as malformed.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnection attempts after a transport failure.",
		}),
		updaterRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updater_refreshes_total",
			Help:      "Region snapshot refreshes, by region and result.",
		}, []string{"region", "result"}),
		openTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_set_transactions",
			Help:      "SET transactions currently awaiting CleanupSet.",
		}),
		snapshotBindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bindings",
			Help:      "Bindings in the published snapshot, by region.",
		}, []string{"region"}),
	}

	m.registry.MustRegister(
		m.pdusReceived,
		m.pdusSent,
		m.malformedPDUs,
		m.reconnects,
		m.updaterRefreshes,
		m.openTransactions,
		m.snapshotBindings,
	)

	return m
}

// Handler serves the session's registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PDUReceived(pduType string) {
	if m != nil {
		m.pdusReceived.WithLabelValues(pduType).Inc()
	}
}

func (m *Metrics) PDUSent(pduType string) {
	if m != nil {
		m.pdusSent.WithLabelValues(pduType).Inc()
	}
}

func (m *Metrics) MalformedPDU() {
	if m != nil {
		m.malformedPDUs.Inc()
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) UpdaterRefresh(region string, ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "error"
	}

	m.updaterRefreshes.WithLabelValues(region, result).Inc()
}

func (m *Metrics) SetOpenTransactions(n int) {
	if m != nil {
		m.openTransactions.Set(float64(n))
	}
}

func (m *Metrics) SetSnapshotBindings(region string, n int) {
	if m != nil {
		m.snapshotBindings.WithLabelValues(region).Set(float64(n))
	}
}
