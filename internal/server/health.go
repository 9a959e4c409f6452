package server

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string            `json:"status"`
	Stores map[string]string `json:"stores"`
}

// handleHealth pings every registered store. Any failure degrades the
// response to 503 and raises an operational alert for the failing store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Stores: map[string]string{}}
	for name, store := range s.stores {
		if err := store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Stores[name] = err.Error()
			if s.notifier != nil {
				s.notifier.NotifyStoreDown(ctx, name, err)
			}
			continue
		}
		resp.Stores[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
