package handlers

import (
	"net/http"

	"renderfarm/internal/pkg/middleware"
)

// PostAlive renews the caller's lease.
func (h *Handler) PostAlive(w http.ResponseWriter, r *http.Request) error {
	if err := h.sched.Heartbeat(r.Header.Get(middleware.WorkerIDHeader)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
