// Package metrics exposes a prometheus Collector that observes a running
// socksio.Run engine through the socksio.Observer hook, generalizing the
// proxy's per-body HistogramVec/CounterVec set to per-protocol-version
// labels.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	handshakeDuration *prometheus.HistogramVec
	connectionsTotal  *prometheus.CounterVec
	bytesRelayed      *prometheus.CounterVec
	activePassthrough prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		handshakeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "socksio_handshake_duration_seconds",
				Help: "Time spent negotiating a SOCKS connection before passthrough begins",
			},
			[]string{"version", "outcome"},
		),
		connectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socksio_connections_total",
				Help: "Total number of upstream connect attempts",
			},
			[]string{"version", "outcome"},
		),
		bytesRelayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socksio_bytes_relayed_total",
				Help: "Total bytes relayed during passthrough",
			},
			[]string{"direction"},
		),
		activePassthrough: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socksio_active_passthroughs",
			Help: "Number of connections currently in passthrough",
		}),
	}
	prometheus.MustRegister(c.handshakeDuration, c.connectionsTotal, c.bytesRelayed, c.activePassthrough)
	return c
}

// NewObserver returns an Observer for one accepted connection. Its
// version label starts as "unknown" until SetVersion is called once the
// dispatcher has identified which protocol the client is speaking.
func (c *Collector) NewObserver() *Observer {
	return &Observer{c: c, version: "unknown", start: time.Now()}
}

// AddBytes records bytes relayed in one direction ("in" or "out")
// during passthrough; transport adapters call this from their relay
// loops.
func (c *Collector) AddBytes(direction string, n int) {
	c.bytesRelayed.WithLabelValues(direction).Add(float64(n))
}

// Handler serves the registered metrics in the Prometheus exposition
// format, mirroring proxy/src/metrics.go's ServeMetrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}

// Observer implements socksio.Observer for a single connection.
type Observer struct {
	c       *Collector
	version string
	start   time.Time
}

// SetVersion labels subsequent observations with the negotiated SOCKS
// version, once a dispatcher has identified it.
func (o *Observer) SetVersion(version int) {
	o.version = strconv.Itoa(version)
}

func (o *Observer) OnConnect(host string, port uint16, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.c.connectionsTotal.WithLabelValues(o.version, outcome).Inc()
	o.c.handshakeDuration.WithLabelValues(o.version, outcome).Observe(time.Since(o.start).Seconds())
}

func (o *Observer) OnPassthroughStart() {
	o.c.activePassthrough.Inc()
}

func (o *Observer) OnPassthroughEnd(err error) {
	o.c.activePassthrough.Dec()
}
