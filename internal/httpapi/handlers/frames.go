package handlers

import (
	"net/http"

	"renderfarm/internal/httpkit"
)

// GetFrames serves the job's source asset verbatim.
func (h *Handler) GetFrames(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteBlob(w, h.sched.Source())
}
