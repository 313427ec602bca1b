package handlers

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	db  *pgxpool.Pool
	rdb *redis.Client
}

func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready fails only when the database is unreachable; the cache degrades
// gracefully, so a redis outage is reported but keeps the service ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"database": "ok", "redis": "ok"}

	if err := h.db.Ping(r.Context()); err != nil {
		status["database"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	if err := h.rdb.Ping(r.Context()).Err(); err != nil {
		status["redis"] = "degraded"
	}
	writeJSON(w, http.StatusOK, status)
}
