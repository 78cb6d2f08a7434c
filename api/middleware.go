package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// requestLogger assigns a request id and logs every request once it has
// been served.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)
	c.Locals("request_id", id)

	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		// The error handler runs after the middleware chain.
		status = fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}

	s.logger.Debug("request served",
		"request_id", id,
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
	)

	return err
}
