package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the proxy.
type Metrics struct {
	DatagramsForwarded *prometheus.CounterVec // direction: upstream|downstream
	BytesForwarded     *prometheus.CounterVec // direction: upstream|downstream
	AdmissionRejected  prometheus.Counter
	GuardDropped       prometheus.Counter
	GeoRejected        prometheus.Counter
	ControlCommands    *prometheus.CounterVec // command: add|remove|reset
	ActiveFlows        prometheus.Gauge
	FlowsCreated       prometheus.Counter
	FlowsReaped        prometheus.Counter
}

// NewMetrics registers all metrics with reg and returns them. Passing a
// fresh registry keeps tests independent of each other.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const namespace = "udpgate"

	return &Metrics{
		DatagramsForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datagrams_forwarded_total",
				Help:      "Datagrams forwarded, by direction",
			},
			[]string{"direction"},
		),
		BytesForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_forwarded_total",
				Help:      "Payload bytes forwarded, by direction",
			},
			[]string{"direction"},
		),
		AdmissionRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_rejected_total",
				Help:      "Datagrams dropped because the source was not admitted",
			},
		),
		GuardDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_dropped_total",
				Help:      "Datagrams dropped by an ingress guard rule",
			},
		),
		GeoRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geo_rejected_total",
				Help:      "Datagrams dropped by the country restriction",
			},
		),
		ControlCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "control_commands_total",
				Help:      "Control commands applied, by kind",
			},
			[]string{"command"},
		),
		ActiveFlows: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_flows",
				Help:      "Number of live client flows",
			},
		),
		FlowsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flows_created_total",
				Help:      "Flows created since start",
			},
		),
		FlowsReaped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flows_reaped_total",
				Help:      "Flows evicted by the inactivity reap",
			},
		),
	}
}
