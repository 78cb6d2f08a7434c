package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/storage"
)

// ConversationResponse is a conversation with its full message history.
type ConversationResponse struct {
	Conversation *storage.Conversation `json:"conversation"`

	// Messages in chronological order (oldest first).
	Messages []*storage.Message `json:"messages"`
}

// ConversationListResponse lists conversations, most recently updated first.
type ConversationListResponse struct {
	Count         int                     `json:"count"`
	Conversations []*storage.Conversation `json:"conversations"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListConversations lists conversations, optionally for one user.
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		convs []*storage.Conversation
		err   error
	)
	if userID := c.Query("user_id"); userID != "" {
		convs, err = s.config.Store.ListConversationsByUser(ctx, userID)
	} else {
		convs, err = s.config.Store.ListConversations(ctx)
	}
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list conversations"})
	}

	if convs == nil {
		convs = []*storage.Conversation{}
	}

	return c.JSON(ConversationListResponse{
		Count:         len(convs),
		Conversations: convs,
	})
}

// handleGetConversation returns one conversation and its messages.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	id, ok := conversationID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid conversation id"})
	}

	ctx := c.UserContext()

	conv, err := s.config.Store.GetConversation(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "conversation not found"})
		}
		s.logger.Error("failed to get conversation", "conversation_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get conversation"})
	}

	msgs, err := s.config.Store.GetMessages(ctx, id)
	if err != nil {
		s.logger.Error("failed to get messages", "conversation_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get messages"})
	}

	if msgs == nil {
		msgs = []*storage.Message{}
	}

	return c.JSON(ConversationResponse{
		Conversation: conv,
		Messages:     msgs,
	})
}

func conversationID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
