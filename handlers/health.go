package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"quickpad/database"
)

// HealthHandler reports service liveness and dependency status
type HealthHandler struct {
	db    database.Database
	redis *redis.Client
	start time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db database.Database, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, start: time.Now()}
}

// Health checks the database and Redis and reports per-dependency status.
// The endpoint stays 200 as long as the process is serving; a degraded
// dependency shows up in the body.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	dbStatus := "up"
	var one int
	if err := h.db.QueryRow(c.Context(), "SELECT 1").Scan(&one); err != nil {
		dbStatus = "down"
	}

	redisStatus := "up"
	if h.redis != nil {
		if err := h.redis.Ping(c.Context()).Err(); err != nil {
			redisStatus = "down"
		}
	} else {
		redisStatus = "disabled"
	}

	status := "ok"
	if dbStatus != "up" {
		status = "degraded"
	}

	return respondOK(c, fiber.Map{
		"status":   status,
		"database": dbStatus,
		"redis":    redisStatus,
		"uptime":   time.Since(h.start).Round(time.Second).String(),
	})
}
