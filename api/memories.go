package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/storage"
)

// MemoryListResponse lists a user's memories, most recently updated first.
type MemoryListResponse struct {
	Count    int               `json:"count"`
	Memories []*storage.Memory `json:"memories"`
}

// MemorySaveRequest is the body of POST /v1/users/:user/memories.
type MemorySaveRequest struct {
	Content              string  `json:"content"`
	Confidence           float64 `json:"confidence,omitempty"`
	SourceConversationID *int64  `json:"source_conversation_id,omitempty"`
}

// MemoryRecallResponse holds the memories that would be injected for a query.
type MemoryRecallResponse struct {
	Query    string        `json:"query"`
	Budget   memory.Budget `json:"budget"`
	Memories []string      `json:"memories"`
}

func (s *Server) memoryUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: memory.ErrNotConfigured.Error()})
}

// handleListMemories lists every memory of a user.
func (s *Server) handleListMemories(c *fiber.Ctx) error {
	if s.config.Memory == nil {
		return s.memoryUnavailable(c)
	}

	userID := c.Params("user")
	mems, err := s.config.Memory.List(c.UserContext(), userID)
	if err != nil {
		s.logger.Error("failed to list memories", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list memories"})
	}

	if mems == nil {
		mems = []*storage.Memory{}
	}

	return c.JSON(MemoryListResponse{Count: len(mems), Memories: mems})
}

// handleSaveMemory stores one memory as given.
func (s *Server) handleSaveMemory(c *fiber.Ctx) error {
	if s.config.Memory == nil {
		return s.memoryUnavailable(c)
	}

	var req MemorySaveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "confidence must be between 0 and 1"})
	}

	userID := c.Params("user")
	id, err := s.config.Memory.Save(c.UserContext(), storage.SaveMemoryInput{
		UserID:               userID,
		Content:              req.Content,
		Confidence:           req.Confidence,
		SourceConversationID: req.SourceConversationID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmptyMemory) {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("failed to save memory", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to save memory"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// handleClearMemories deletes every memory of a user.
func (s *Server) handleClearMemories(c *fiber.Ctx) error {
	if s.config.Memory == nil {
		return s.memoryUnavailable(c)
	}

	userID := c.Params("user")
	n, err := s.config.Memory.Clear(c.UserContext(), userID)
	if err != nil {
		s.logger.Error("failed to clear memories", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to clear memories"})
	}

	s.logger.Info("cleared memories", "user_id", userID, "deleted", n)
	return c.JSON(fiber.Map{"deleted": n})
}

// handleRecallMemories previews the memories a turn with message q would
// receive.
func (s *Server) handleRecallMemories(c *fiber.Ctx) error {
	if s.config.Memory == nil {
		return s.memoryUnavailable(c)
	}

	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "q parameter required"})
	}

	userID := c.Params("user")
	budget := memory.BudgetFor(query)
	selected, err := s.config.Memory.Recall(c.UserContext(), userID, query, budget)
	if err != nil {
		s.logger.Error("failed to recall memories", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to recall memories"})
	}

	if selected == nil {
		selected = []string{}
	}

	return c.JSON(MemoryRecallResponse{Query: query, Budget: budget, Memories: selected})
}
