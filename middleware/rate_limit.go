package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"quickpad/utils"
)

// RateLimitConfig holds the rate limiter instances used by the router
type RateLimitConfig struct {
	APILimiter    fiber.Handler
	AuthLimiter   fiber.Handler
	UploadLimiter fiber.Handler
}

// NewRateLimitConfig creates the rate limiters. With a Redis client the
// counters are shared across instances; without one they fall back to
// in-memory storage.
func NewRateLimitConfig(rdb *redis.Client, apiMax int, apiWindow time.Duration) *RateLimitConfig {
	var storage fiber.Storage
	if rdb != nil {
		storage = redisstorage.NewFromConnection(rdb)
	}

	newLimiter := func(max int, window time.Duration, message string) fiber.Handler {
		return limiter.New(limiter.Config{
			Max:        max,
			Expiration: window,
			KeyGenerator: func(c *fiber.Ctx) string {
				return utils.ClientIP(c)
			},
			Storage: storage,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"success": false,
					"error":   message,
				})
			},
		})
	}

	return &RateLimitConfig{
		// General API tier, sized for autosave traffic
		APILimiter: newLimiter(apiMax, apiWindow, "Too many requests. Please try again later."),
		// Auth endpoints get a strict tier to slow down brute force
		AuthLimiter: newLimiter(10, 5*time.Minute, "Too many authentication attempts. Please try again later."),
		// Uploads are heavier than saves and get their own tier
		UploadLimiter: newLimiter(60, 15*time.Minute, "Too many uploads. Please try again later."),
	}
}
