package main

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestAPIFlowsAndAdmissionEndpoints(t *testing.T) {
	admission := NewAdmissionTable()
	admission.Add(7, addrB)

	f, _ := newTestForwarder(t, admission)
	f.handleDatagram([]byte("PING"), &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 40000})

	api := NewAPIServer(APIConfig{}, f, admission, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	api.handleGetFlows(rec, httptest.NewRequest("GET", "/api/flows", nil))
	if rec.Code != 200 {
		t.Fatalf("flows status = %d", rec.Code)
	}

	var flows []FlowInfo
	if err := json.NewDecoder(rec.Body).Decode(&flows); err != nil {
		t.Fatalf("failed to decode flows: %v", err)
	}
	if len(flows) != 1 || flows[0].Client != "203.0.113.5:40000" {
		t.Errorf("unexpected flows %+v", flows)
	}

	rec = httptest.NewRecorder()
	api.handleGetAdmission(rec, httptest.NewRequest("GET", "/api/admission", nil))
	if rec.Code != 200 {
		t.Fatalf("admission status = %d", rec.Code)
	}

	var entries []struct {
		PlayerID uint32 `json:"player_id"`
		Address  string `json:"address"`
		Port     uint16 `json:"port"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode admission entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Address != "203.0.113.5" || entries[0].Port != 40000 {
		t.Errorf("unexpected entries %+v", entries)
	}

	rec = httptest.NewRecorder()
	api.handleGetFlows(rec, httptest.NewRequest("POST", "/api/flows", nil))
	if rec.Code != 405 {
		t.Errorf("POST should be rejected, got %d", rec.Code)
	}
}
