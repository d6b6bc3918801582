// Package metrics exports each station's engine.Statistics as Prometheus
// metrics (spec §2 row M, "Statistics Exporter"), scraped on demand
// rather than pushed, since a station's measurements only matter at
// scrape time.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocppsim/charging-station-simulator/internal/engine"
)

// StatsSource is anything that exposes one station's message-engine
// statistics. *station.Station satisfies this via its Stats method.
type StatsSource interface {
	Stats() *engine.Statistics
}

// Exporter is a prometheus.Collector over a dynamic set of stations, so
// stations can join and leave the pool without re-registering a collector.
type Exporter struct {
	mu       sync.Mutex
	stations map[string]StatsSource

	count         *prometheus.Desc
	responseCount *prometheus.Desc
	errorCount    *prometheus.Desc
	avgMs         *prometheus.Desc
	p95Ms         *prometheus.Desc
	msgSize       *prometheus.Desc
}

// NewExporter builds an empty Exporter.
func NewExporter() *Exporter {
	return &Exporter{
		stations:      make(map[string]StatsSource),
		count:         prometheus.NewDesc("ocppsim_command_count", "Number of CALLs observed per action, successful or not.", []string{"station", "action"}, nil),
		responseCount: prometheus.NewDesc("ocppsim_command_response_count", "Number of CALLs per action that completed with a CALLRESULT.", []string{"station", "action"}, nil),
		errorCount:    prometheus.NewDesc("ocppsim_command_error_count", "Number of CALLs per action that ended in a CALLERROR, timeout, or send/buffer failure.", []string{"station", "action"}, nil),
		avgMs:         prometheus.NewDesc("ocppsim_command_avg_milliseconds", "Average round-trip latency per action.", []string{"station", "action"}, nil),
		p95Ms:         prometheus.NewDesc("ocppsim_command_p95_milliseconds", "95th percentile round-trip latency per action.", []string{"station", "action"}, nil),
		msgSize:       prometheus.NewDesc("ocppsim_command_message_bytes_total", "Cumulative bytes sent per action.", []string{"station", "action"}, nil),
	}
}

// Register adds a station to the set scraped on every Collect.
func (e *Exporter) Register(stationID string, source StatsSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stations[stationID] = source
}

// Unregister removes a station, e.g. once it is permanently stopped.
func (e *Exporter) Unregister(stationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.stations, stationID)
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.count
	ch <- e.responseCount
	ch <- e.errorCount
	ch <- e.avgMs
	ch <- e.p95Ms
	ch <- e.msgSize
}

// Collect implements prometheus.Collector, snapshotting every registered
// station's Statistics at scrape time.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.Lock()
	sources := make(map[string]StatsSource, len(e.stations))
	for id, s := range e.stations {
		sources[id] = s
	}
	e.mu.Unlock()

	for stationID, source := range sources {
		for action, cs := range source.Stats().Snapshot() {
			ch <- prometheus.MustNewConstMetric(e.count, prometheus.CounterValue, float64(cs.Count), stationID, action)
			ch <- prometheus.MustNewConstMetric(e.responseCount, prometheus.CounterValue, float64(cs.ResponseCount), stationID, action)
			ch <- prometheus.MustNewConstMetric(e.errorCount, prometheus.CounterValue, float64(cs.ErrorCount), stationID, action)
			ch <- prometheus.MustNewConstMetric(e.avgMs, prometheus.GaugeValue, cs.AvgMillis, stationID, action)
			ch <- prometheus.MustNewConstMetric(e.p95Ms, prometheus.GaugeValue, cs.P95Millis, stationID, action)
			ch <- prometheus.MustNewConstMetric(e.msgSize, prometheus.CounterValue, float64(cs.MessageSize), stationID, action)
		}
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
