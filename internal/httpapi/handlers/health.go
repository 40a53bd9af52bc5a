package handlers

import (
	"context"
	"net/http"
	"time"

	"renderfarm/internal/httpkit"
)

const checkTimeout = 5 * time.Second

// Health reports liveness. With ?deep=true it also checks every configured
// backend.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "renderfarm-coordinator",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		for _, check := range checks {
			if check["status"] != "ok" {
				health["status"] = "degraded"
				h.log.FromContext(ctx).Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]map[string]any {
	checks := map[string]map[string]any{
		"storage": h.checkStorage(ctx),
	}
	if h.pool != nil {
		checks["postgres"] = h.checkPostgres(ctx)
	}
	if h.rdb != nil {
		checks["redis"] = h.checkRedis(ctx)
	}
	return checks
}

func (h *Handler) checkPostgres(ctx context.Context) map[string]any {
	return timed(ctx, func(ctx context.Context, result map[string]any) error {
		if err := h.pool.Ping(ctx); err != nil {
			return err
		}
		stats := h.pool.Stat()
		result["total_conns"] = stats.TotalConns()
		result["idle_conns"] = stats.IdleConns()
		result["acquired_conns"] = stats.AcquiredConns()
		return nil
	})
}

func (h *Handler) checkRedis(ctx context.Context) map[string]any {
	return timed(ctx, func(ctx context.Context, _ map[string]any) error {
		return h.rdb.Ping(ctx).Err()
	})
}

func (h *Handler) checkStorage(ctx context.Context) map[string]any {
	return timed(ctx, func(ctx context.Context, result map[string]any) error {
		result["provider"] = h.sp.Provider()
		return h.sp.Check(ctx)
	})
}

// timed runs check under checkTimeout and fills in status and latency.
func timed(ctx context.Context, check func(context.Context, map[string]any) error) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := check(checkCtx, result); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
