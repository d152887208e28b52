package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMux_PingAndHealth(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("window_engine", func() ComponentHealth {
		return ComponentHealth{Status: StatusHealthy, Message: "ok"}
	})
	mux := Mux(hc, nil)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	if err != nil {
		t.Fatalf("get /ping: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for healthy report, got %d", resp2.StatusCode)
	}
}

func TestMux_UnhealthyComponentReturns503(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("orchestrator", func() ComponentHealth {
		return ComponentHealth{Status: StatusUnhealthy, Message: "all adapters down"}
	})
	mux := Mux(hc, nil)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
