package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestLogger logs each request with latency and status.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			log.Error("request failed", append(fields, zap.Error(err))...)
			return err
		}
		log.Info("request", fields...)
		return nil
	}
}

// Recovery converts panics into 500 responses.
func Recovery(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("panic", r), zap.String("path", c.Path()))
				_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal server error",
				})
			}
		}()
		return c.Next()
	}
}

// RateLimiter counts requests per client in Redis with a fixed window.
// When Redis is unreachable it falls back to an in-process token bucket
// instead of failing open or closed on every request.
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

func NewRateLimiter(client *redis.Client, prefix string, perMinute int) *RateLimiter {
	return &RateLimiter{
		client:   client,
		prefix:   prefix,
		limit:    perMinute,
		window:   time.Minute,
		fallback: make(map[string]*rate.Limiter),
	}
}

func (r *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if id, ok := c.Locals("userID").(string); ok && id != "" {
			key = id
		}
		allowed, err := r.allowRedis(c, key)
		if err != nil {
			allowed = r.allowLocal(key)
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}

func (r *RateLimiter) allowRedis(c *fiber.Ctx, key string) (bool, error) {
	ctx := c.UserContext()
	redisKey := fmt.Sprintf("%s:ratelimit:%s", r.prefix, key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		r.client.Expire(ctx, redisKey, r.window)
	}
	return count <= int64(r.limit), nil
}

func (r *RateLimiter) allowLocal(key string) bool {
	r.mu.Lock()
	lim, ok := r.fallback[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(r.limit)/60.0), r.limit)
		r.fallback[key] = lim
	}
	r.mu.Unlock()
	return lim.Allow()
}
