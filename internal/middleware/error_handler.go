package middleware

import (
	"errors"

	"estimate-backend/internal/domain"
	"estimate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const errorMessageLocal = "error_message"

// ErrorHandler is the global error handler. Returns the standard error format.
// Validation failures are 400, unknown ids 404, consistency failures 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	details := map[string]interface{}{}

	var fe *fiber.Error
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.As(err, &ve):
		code = fiber.StatusBadRequest
		message = ve.Error()
		if ve.Field != "" {
			details["field"] = ve.Field
		}
	case errors.Is(err, domain.ErrNotFound):
		code = fiber.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrConsistency):
		message = err.Error()
		log.Error().Err(err).Str("trace_id", GetTraceID(c)).Msg("consistency failure")
	default:
		log.Error().Err(err).Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Msg("unhandled error")
	}
	if code >= fiber.StatusInternalServerError {
		c.Locals(errorMessageLocal, err.Error())
	}
	return response.Error(c, message, code, details)
}
