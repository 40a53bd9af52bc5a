package handlers

import (
	"net/http"

	"renderfarm/internal/httpkit"
)

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, http.StatusOK, h.sched.Snapshot())
}
