package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware is a fixed-window limiter keyed on (client IP, path).
// The window lands in the key itself so expiry and counting cannot race.
// Redis being down opens the gate rather than taking the API with it.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%s:%d", c.IP(), c.Path(), bucket)

		pipe := rdb.Pipeline()
		count := pipe.Incr(c.Context(), key)
		pipe.Expire(c.Context(), key, window)
		if _, err := pipe.Exec(c.Context()); err != nil {
			return c.Next()
		}

		if count.Val() > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
