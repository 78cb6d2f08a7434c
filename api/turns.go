package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/papercomputeco/tether/pkg/agent"
	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/sse"
)

// SSE event type of a failed streamed turn.
const eventTypeError = "error"

// TurnErrorResponse is returned when a turn fails after its conversation was
// resolved, so the caller still learns which conversation was touched.
type TurnErrorResponse struct {
	Error          string `json:"error"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

// handleTurn runs one turn. With ?stream=true or an Accept header asking
// for text/event-stream the turn is streamed as Server-Sent Events.
func (s *Server) handleTurn(c *fiber.Ctx) error {
	var req agent.TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "message is required"})
	}

	if wantsStream(c) {
		return s.streamTurn(c, req)
	}

	result, err := s.config.Agent.Run(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyMessage) {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
		}

		resp := TurnErrorResponse{Error: err.Error()}
		if result != nil {
			resp.ConversationID = result.ConversationID
		}
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}

	return c.JSON(result)
}

func wantsStream(c *fiber.Ctx) bool {
	return c.QueryBool("stream") || strings.Contains(c.Get(fiber.HeaderAccept), "text/event-stream")
}

// streamTurn writes each turn event as an SSE event named after its type.
// A client that goes away ends the turn at the next write.
func (s *Server) streamTurn(c *fiber.Ctx, req agent.TurnRequest) error {
	ctx := c.UserContext()
	requestID, _ := c.Locals("request_id").(string)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for ev, err := range s.config.Agent.Stream(ctx, req) {
			out := &sse.Event{Type: string(ev.Type)}

			var data []byte
			if err != nil {
				out.Type = eventTypeError
				data, _ = json.Marshal(llm.ErrorResponse{Error: err.Error()})
			} else {
				data, err = json.Marshal(ev)
				if err != nil {
					s.logger.Error("failed to encode turn event", "request_id", requestID, "error", err)
					return
				}
			}
			out.Data = string(data)

			if err := sse.Write(w, out); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				s.logger.Debug("stream client went away", "request_id", requestID, "error", err)
				return
			}
		}
	}))

	return nil
}
