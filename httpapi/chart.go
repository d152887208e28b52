package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/window"
)

// ChartQuerier is the subset of window.Engine the dashboard endpoint needs,
// narrowed to keep this package decoupled from the engine's full surface.
type ChartQuerier interface {
	ChartFrame(ex1, ex2, sym string, cfg config.ChartConfig) (window.ChartFrame, bool)
}

// RegisterChartRoute mounts GET /api/dashboard_data?symbol=&exchange1=&
// exchange2= on mux: an NDJSON stream of historical chart frames (spec
// §6.3), one JSON object per line, terminated by a blank line.
func RegisterChartRoute(mux *http.ServeMux, engine ChartQuerier, cfg config.ChartConfig) {
	mux.HandleFunc("/api/dashboard_data", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ex1, ex2, symbol := q.Get("exchange1"), q.Get("exchange2"), q.Get("symbol")
		if ex1 == "" || ex2 == "" || symbol == "" {
			http.Error(w, "symbol, exchange1, and exchange2 are required", http.StatusBadRequest)
			return
		}

		frame, ok := engine.ChartFrame(ex1, ex2, symbol, cfg)
		if !ok {
			http.Error(w, "no window for the requested pair/symbol", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		enc := json.NewEncoder(w)
		_ = enc.Encode(frame)
		_, _ = w.Write([]byte("\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	})
}
