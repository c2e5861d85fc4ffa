package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// LoginRateLimit limits login attempts per email or IP using Redis if available.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		key := strings.ToLower(strings.TrimSpace(req.Email))
		if key == "" {
			key = c.IP()
		}
		return bump(c, cache, "rl:login:"+key, maxPerMin, "too many login attempts, try again later")
	}
}

// TransformRateLimit caps costed operations per authenticated user per minute.
func TransformRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			uid = c.IP()
		}
		return bump(c, cache, "rl:transform:"+uid, maxPerMin, "too many requests, slow down")
	}
}

func bump(c *fiber.Ctx, cache *redis.Client, key string, max int, msg string) error {
	cnt, err := cache.Incr(c.UserContext(), key).Result()
	if err == nil && cnt == 1 {
		cache.Expire(c.UserContext(), key, time.Minute)
	}
	if err != nil {
		return c.Next() // fail-open on cache errors
	}
	if cnt > int64(max) {
		return fiber.NewError(http.StatusTooManyRequests, msg)
	}
	return c.Next()
}
