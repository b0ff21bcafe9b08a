package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"reminder-server/metrics"
)

type RouterOptions struct {
	MetricsEnabled bool
	MetricsPath    string
}

type healthInfo struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Clients int    `json:"clients"`
	Pending int    `json:"pending"`
	Uptime  string `json:"uptime"`
}

// NewRouter mounts the websocket endpoint at / and /ws next to the health
// check and, when enabled, the metrics endpoint.
func NewRouter(d *Dispatcher, opts RouterOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", d.HandleWebSocket)
	mux.HandleFunc("GET /ws", d.HandleWebSocket)
	mux.HandleFunc("GET /health", d.Health)
	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, metrics.Handler())
	}
	return mux
}

func (d *Dispatcher) Health(w http.ResponseWriter, r *http.Request) {
	info := healthInfo{
		Status:  "ok",
		Clients: d.hub.Count(),
		Pending: d.sched.Len(),
		Uptime:  time.Since(d.started).Round(time.Second).String(),
	}
	select {
	case <-d.ready:
		info.Ready = true
	default:
		info.Status = "starting"
	}

	w.Header().Set("Content-Type", "application/json")
	if !info.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(info)
}
