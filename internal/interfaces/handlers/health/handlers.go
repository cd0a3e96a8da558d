package health

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	catalogsvc "estimate-backend/internal/application/catalog"
	healthsvc "estimate-backend/internal/application/health"
	"estimate-backend/internal/pkg/constants"
	"estimate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const serviceName = "estimate-api"

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb     *redis.Client
	DB      healthsvc.DBPinger
	Catalog *catalogsvc.Service
}

func (h *Handlers) collect(ctx context.Context) healthsvc.CollectResult {
	var catalogs []catalogsvc.SourceStatus
	if h.Catalog != nil {
		catalogs = h.Catalog.Status()
	}
	return healthsvc.CollectHealth(ctx, h.Rdb, h.DB, catalogs)
}

// Reset clears health stats in Redis. Mounted behind the admin key.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	if h.Rdb == nil {
		return response.Error(c, "Redis is not configured", fiber.StatusServiceUnavailable, nil)
	}
	ctx := c.UserContext()
	if err := h.Rdb.Del(ctx, constants.HealthKeys...).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	if err := h.Rdb.Set(ctx, constants.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}

// JSON returns health data as JSON.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := h.collect(c.UserContext())
	out := map[string]interface{}{
		"service":      serviceName,
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
		"catalogs":     result.Catalogs,
	}
	return c.JSON(out)
}

// Errors returns the most recent server error log entries.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	if h.Rdb == nil {
		return c.JSON([]interface{}{})
	}
	entries, err := h.Rdb.LRange(c.UserContext(), constants.KeyErrorLog, 0, constants.ErrorLogSize-1).Result()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	errors := make([]map[string]interface{}, 0, len(entries))
	for _, s := range entries {
		var m map[string]interface{}
		if _ = json.Unmarshal([]byte(s), &m); m != nil {
			errors = append(errors, m)
		}
	}
	return c.JSON(errors)
}

// Dashboard returns the HTML health status page.
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	html, err := healthsvc.RenderDashboardHTML(h.collect(c.UserContext()))
	if err != nil {
		return err
	}
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(html)
}
