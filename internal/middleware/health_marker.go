package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"estimate-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthMarker records request stats in Redis (skip /, /health*, /metrics, favicon).
// Server errors are pushed onto a capped error log. A nil client disables it.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}
		path := c.Path()
		if path == "/" || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/metrics") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := context.Background()
		_, _ = rdb.Set(ctx, constants.KeyLastReq, b, 0).Result()
		_, _ = rdb.Incr(ctx, constants.KeyReqTotal).Result()

		err := c.Next()

		ms := time.Since(start).Milliseconds()
		_, _ = rdb.Incr(ctx, constants.KeyResCount).Result()
		_, _ = rdb.IncrByFloat(ctx, constants.KeyResTime, float64(ms)).Result()
		if status := c.Response().StatusCode(); status >= 500 {
			_, _ = rdb.Incr(ctx, constants.KeyReqErrors).Result()
			msg, _ := c.Locals(errorMessageLocal).(string)
			entry, _ := json.Marshal(map[string]interface{}{
				"time":     start,
				"method":   c.Method(),
				"path":     c.OriginalURL(),
				"status":   status,
				"message":  msg,
				"trace_id": GetTraceID(c),
			})
			pipe := rdb.TxPipeline()
			pipe.LPush(ctx, constants.KeyErrorLog, entry)
			pipe.LTrim(ctx, constants.KeyErrorLog, 0, constants.ErrorLogSize-1)
			_, _ = pipe.Exec(ctx)
		}
		return err
	}
}
