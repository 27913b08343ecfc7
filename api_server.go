package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIConfig represents the configuration for the ops API server
type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Host    string `json:"host" yaml:"host"`
}

// APIServer exposes read-only operational state: live flows, admission
// entries, health and Prometheus metrics. Mutation stays on the TCP control
// channel.
type APIServer struct {
	config    APIConfig
	forwarder *Forwarder
	admission *AdmissionTable
	registry  *prometheus.Registry
	server    *http.Server
	running   atomic.Bool
}

// NewAPIServer creates a new ops API server
func NewAPIServer(config APIConfig, forwarder *Forwarder, admission *AdmissionTable, registry *prometheus.Registry) *APIServer {
	return &APIServer{
		config:    config,
		forwarder: forwarder,
		admission: admission,
		registry:  registry,
	}
}

// Start starts the API server
func (a *APIServer) Start() error {
	if !a.config.Enabled {
		logger.Info("ops API server is disabled")
		return nil
	}

	if a.running.Load() {
		return fmt.Errorf("ops API server is already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/flows", a.handleGetFlows)
	mux.HandleFunc("/api/admission", a.handleGetAdmission)
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	host := a.config.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := a.config.Port
	if port == 0 {
		port = 8080
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	a.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Infof("starting ops API server on %s", addr)
	a.running.Store(true)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("ops API server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the API server
func (a *APIServer) Stop() error {
	if !a.running.Load() {
		return nil
	}

	logger.Info("stopping ops API server")
	a.running.Store(false)
	return a.server.Close()
}

// handleGetFlows handles GET /api/flows
func (a *APIServer) handleGetFlows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, a.forwarder.Flows())
}

// handleGetAdmission handles GET /api/admission
func (a *APIServer) handleGetAdmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type entryView struct {
		PlayerID uint32 `json:"player_id"`
		Address  string `json:"address"`
		Port     uint16 `json:"port"`
	}

	entries := a.admission.Snapshot()
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{PlayerID: e.PlayerID, Address: e.IP.String(), Port: e.Port})
	}

	writeJSON(w, views)
}

func (a *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Debugf("health response write: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("error encoding JSON: %v", err)
	}
}
