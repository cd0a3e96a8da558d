package middleware

import (
	"time"

	"estimate-backend/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// RouteLogger logs each request entry and exit with duration and trace ID,
// and records the request in the HTTP metrics.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		start := time.Now()
		method, path := c.Method(), c.Path()
		log.Debug().Str("trace_id", traceID).Str("method", method).Str("path", path).Msg("Entering request")
		err := c.Next()
		if err != nil {
			// Run the error handler now so the logged status is the one sent.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}
		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		observability.RecordRequest(method, routePattern(c), status, elapsed)
		log.Info().Str("trace_id", traceID).Str("method", method).Str("path", path).
			Int("status", status).Int64("ms", elapsed.Milliseconds()).Msg("Exiting request")
		return err
	}
}

func routePattern(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return "unmatched"
}
