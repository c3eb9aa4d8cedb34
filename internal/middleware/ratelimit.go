package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"portal/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimit returns a fixed-window rate limiter backed by Redis, keyed by
// client IP and the given bucket name. When Redis is unavailable the limiter
// fails open so the API keeps serving.
func RateLimit(client *redis.Client, max int, window time.Duration, name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if client == nil {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", name, c.IP())
		ctx := c.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limiter unavailable",
				slog.String("bucket", name), slog.String("error", err.Error()))
			return c.Next()
		}
		if count == 1 {
			client.Expire(ctx, key, window)
		}

		if count > int64(max) {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewValidationError("Too many requests, please try again later"))
		}

		return c.Next()
	}
}
