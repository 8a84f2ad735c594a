// Package metrics exposes ingestion and device-output counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flightbridge"

// Metrics holds every collector. Each instance owns its registry so tests and multiple bridges in
// one process do not collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	PacketsReceived   prometheus.Counter
	PacketsMalformed  prometheus.Counter
	ValuesApplied     prometheus.Counter
	TypeMismatches    prometheus.Counter
	UnknownKeys       prometheus.Counter
	ReceiveErrors     prometheus.Counter
	AxisWrites        prometheus.Counter
	AxisWriteFailures prometheus.Counter

	LastUpdate      prometheus.Gauge
	ListenerRunning prometheus.Gauge
	DeviceOwned     prometheus.Gauge

	PacketLatency prometheus.Histogram
}

// New creates and registers the collectors
func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PacketsReceived:   counter("packets_received_total", "Datagrams received on the telemetry socket."),
		PacketsMalformed:  counter("packets_malformed_total", "Datagrams discarded because they were not a JSON object."),
		ValuesApplied:     counter("values_applied_total", "Channel values written to the state store."),
		TypeMismatches:    counter("type_mismatches_total", "Channel values rejected because they could not be coerced."),
		UnknownKeys:       counter("unknown_keys_total", "Packet keys ignored because they are not in the channel schema."),
		ReceiveErrors:     counter("receive_errors_total", "Socket errors other than the receive timeout."),
		AxisWrites:        counter("axis_writes_total", "Successful device axis writes."),
		AxisWriteFailures: counter("axis_write_failures_total", "Device axis writes that failed."),

		LastUpdate:      gauge("last_update_timestamp_seconds", "Unix time of the last applied channel value."),
		ListenerRunning: gauge("listener_running", "1 while the ingestion listener is running."),
		DeviceOwned:     gauge("device_owned", "1 while the output device is owned."),

		PacketLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packet_processing_seconds",
			Help:      "Time from datagram receipt to the end of the mapper pass.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14),
		}),
	}

	m.registry.MustRegister(
		m.PacketsReceived, m.PacketsMalformed, m.ValuesApplied, m.TypeMismatches, m.UnknownKeys,
		m.ReceiveErrors, m.AxisWrites, m.AxisWriteFailures,
		m.LastUpdate, m.ListenerRunning, m.DeviceOwned,
		m.PacketLatency,
	)

	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetBool sets g to 1 or 0
func SetBool(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}
