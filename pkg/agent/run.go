package agent

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/tether/pkg/eventstream"
	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/storage"
)

// ErrEmptyMessage is returned for a turn without message text.
var ErrEmptyMessage = errors.New("message is empty")

// errStopped ends a streamed turn whose consumer stopped iterating.
var errStopped = errors.New("stream consumer stopped")

// ToolInterruptedResult is stored as the result of a tool call that never ran
// because its turn was interrupted.
const ToolInterruptedResult = "Error: interrupted before the tool ran"

// emitFunc delivers an event to a streaming consumer. It returns false
// when the consumer is gone.
type emitFunc func(Event) bool

func discard(Event) bool { return true }

// Run executes one blocking turn.
//
// On error the returned result is still non-nil once the conversation has
// been resolved, so callers can report which conversation was touched.
func (a *Agent) Run(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	return a.run(ctx, req, false, discard)
}

type turn struct {
	req     TurnRequest
	userID  string
	model   string
	system  string
	started time.Time
	result  *TurnResult

	// history is the working memory sent to the model.
	history []llm.Message
}

func (a *Agent) run(ctx context.Context, req TurnRequest, streaming bool, emit emitFunc) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	t := &turn{
		req:     req,
		userID:  cmp.Or(req.UserID, a.defaultUser),
		model:   cmp.Or(req.Model, a.model),
		system:  cmp.Or(req.System, a.systemPrompt),
		started: time.Now(),
		result:  &TurnResult{},
	}
	t.result.UserID = t.userID

	err := a.execute(ctx, t, streaming, emit)
	a.finish(ctx, t, err)

	if t.result.ConversationID == 0 {
		return nil, err
	}
	return t.result, err
}

func (a *Agent) execute(ctx context.Context, t *turn, streaming bool, emit emitFunc) error {
	if err := a.resolve(ctx, t); err != nil {
		return err
	}
	if !emit(Event{
		Type:                    EventConversation,
		ConversationID:          t.result.ConversationID,
		FellBack:                t.result.FellBack,
		RequestedConversationID: t.result.RequestedConversationID,
	}) {
		return errStopped
	}

	userMsg := llm.NewTextMessage(llm.RoleUser, t.req.Message)
	if err := a.persist(ctx, t, userMsg); err != nil {
		return err
	}

	a.extract(ctx, t)

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		t.result.Iterations = iteration

		budget := memory.BudgetFor(t.req.Message)
		recalled := a.recall(ctx, t, budget)

		chatReq := &llm.ChatRequest{
			Model:     t.model,
			MaxTokens: a.maxTokens,
			System:    memory.ComposeSystemPrompt(t.system, recalled),
			Messages:  slices.Clone(t.history),
			Tools:     a.tools.Schemas(),
		}

		resp, err := a.call(ctx, chatReq, streaming, emit)
		if err != nil {
			return err
		}
		t.result.StopReason = resp.StopReason

		a.logger.Debug("llm response",
			"conversation_id", t.result.ConversationID,
			"iteration", iteration,
			"stop_reason", resp.StopReason,
			"blocks", len(resp.Message.Content),
		)

		assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Message.Content}

		switch resp.StopReason {
		case llm.StopReasonEndTurn:
			if err := a.persist(ctx, t, assistant); err != nil {
				return err
			}
			t.result.Reply = assistant.GetText()
			t.result.Outcome = OutcomeDone
			return nil

		case llm.StopReasonToolUse:
			uses := assistant.ToolUses()
			if len(uses) == 0 {
				// Nothing to answer; continuing would resend the same history.
				t.result.Outcome = OutcomeAborted
				return nil
			}

			if err := a.persist(ctx, t, assistant); err != nil {
				return err
			}
			if text := assistant.GetText(); text != "" {
				t.result.Reply = text
			}

			results, err := a.executeTools(ctx, t, uses, emit)
			if err != nil {
				a.closeInterrupted(ctx, t, uses, results)
				return err
			}
			if err := a.persist(ctx, t, llm.Message{Role: llm.RoleUser, Content: results}); err != nil {
				return err
			}

		default:
			a.logger.Warn("unexpected stop reason, aborting turn",
				"conversation_id", t.result.ConversationID,
				"stop_reason", resp.StopReason,
			)
			t.result.Outcome = OutcomeAborted
			return nil
		}
	}

	a.logger.Warn("iteration limit reached",
		"conversation_id", t.result.ConversationID,
		"max_iterations", a.maxIterations,
	)
	t.result.Outcome = OutcomeMaxIterations
	return nil
}

// resolve picks the conversation of the turn and loads its history.
func (a *Agent) resolve(ctx context.Context, t *turn) error {
	requested := t.req.ConversationID

	if requested != 0 {
		conv, err := a.store.GetConversation(ctx, requested)
		switch {
		case err == nil && conv.UserID == t.userID:
			msgs, err := a.store.GetMessages(ctx, conv.ID)
			if err != nil {
				return fmt.Errorf("loading conversation history: %w", err)
			}
			t.result.ConversationID = conv.ID
			t.history = make([]llm.Message, 0, len(msgs)+3)
			for _, m := range msgs {
				t.history = append(t.history, m.LLMMessage())
			}
			return a.repairHistory(ctx, t)

		case err == nil:
			a.logger.Warn("conversation belongs to another user, starting a new one",
				"requested_conversation_id", requested,
				"user_id", t.userID,
			)

		case storage.IsNotFound(err):
			a.logger.Warn("conversation not found, starting a new one",
				"requested_conversation_id", requested,
				"user_id", t.userID,
			)

		default:
			return fmt.Errorf("loading conversation: %w", err)
		}

		t.result.FellBack = true
		t.result.RequestedConversationID = requested
	}

	conv, err := a.store.CreateConversation(ctx, t.userID, "")
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	t.result.ConversationID = conv.ID
	return nil
}

// repairHistory answers tool calls that an earlier, interrupted turn left
// without results, so the replayed history keeps every tool_use paired.
func (a *Agent) repairHistory(ctx context.Context, t *turn) error {
	if len(t.history) == 0 {
		return nil
	}
	last := t.history[len(t.history)-1]
	if last.Role != llm.RoleAssistant {
		return nil
	}
	uses := last.ToolUses()
	if len(uses) == 0 {
		return nil
	}

	a.logger.Warn("closing tool calls left unanswered by an interrupted turn",
		"conversation_id", t.result.ConversationID,
		"tool_calls", len(uses),
	)

	msg := llm.Message{Role: llm.RoleUser, Content: interruptedResults(uses, nil)}
	if _, err := a.store.AddMessage(ctx, t.result.ConversationID, msg.Role, msg.Content); err != nil {
		return fmt.Errorf("repairing conversation history: %w", err)
	}
	t.history = append(t.history, msg)
	return nil
}

// closeInterrupted persists a result for every tool call of an interrupted
// batch: the ones that ran keep their result, the rest are marked
// interrupted. The write outlives the cancelled turn context.
func (a *Agent) closeInterrupted(ctx context.Context, t *turn, uses []llm.ToolUseBlock, done llm.Content) {
	msg := llm.Message{Role: llm.RoleUser, Content: interruptedResults(uses, done)}
	if err := a.persist(context.WithoutCancel(ctx), t, msg); err != nil {
		a.logger.Error("tool results of interrupted turn not persisted",
			"conversation_id", t.result.ConversationID,
			"error", err,
		)
	}
}

// interruptedResults pads done, the results of the calls that completed, with
// an error result for each remaining call in uses.
func interruptedResults(uses []llm.ToolUseBlock, done llm.Content) llm.Content {
	results := make(llm.Content, 0, len(uses))
	results = append(results, done...)
	for _, use := range uses[len(done):] {
		results = append(results, llm.ToolResultBlock{
			ToolUseID: use.ID,
			Content:   ToolInterruptedResult,
			IsError:   true,
		})
	}
	return results
}

// persist appends a message to working memory and to the store.
func (a *Agent) persist(ctx context.Context, t *turn, msg llm.Message) error {
	if _, err := a.store.AddMessage(ctx, t.result.ConversationID, msg.Role, msg.Content); err != nil {
		return fmt.Errorf("persisting %s message: %w", msg.Role, err)
	}
	t.history = append(t.history, msg)
	t.result.Messages = append(t.result.Messages, msg)
	return nil
}

// extract saves memories found in the user message. Failures are logged
// and never fail the turn.
func (a *Agent) extract(ctx context.Context, t *turn) {
	if a.memory == nil {
		return
	}

	saved, err := a.memory.Ingest(ctx, t.userID, t.result.ConversationID, t.req.Message)
	t.result.MemoriesSaved = saved
	if err != nil {
		a.logger.Error("memory extraction failed",
			"conversation_id", t.result.ConversationID,
			"error", err,
		)
	}
}

// recall loads memories for the system prompt. Failures are logged and the
// request goes out without memories.
func (a *Agent) recall(ctx context.Context, t *turn, budget memory.Budget) []string {
	if a.memory == nil {
		return nil
	}

	recalled, err := a.memory.Recall(ctx, t.userID, t.req.Message, budget)
	if err != nil {
		a.logger.Error("memory recall failed",
			"conversation_id", t.result.ConversationID,
			"error", err,
		)
		return nil
	}
	return recalled
}

// call issues one LLM request, forwarding text deltas when streaming.
func (a *Agent) call(ctx context.Context, req *llm.ChatRequest, streaming bool, emit emitFunc) (*llm.ChatResponse, error) {
	start := time.Now()

	var (
		resp *llm.ChatResponse
		err  error
	)
	if streaming {
		resp, err = a.stream(ctx, req, emit)
	} else {
		resp, err = a.llm.Chat(ctx, req)
	}

	if err != nil {
		a.metrics.ObserveLLMRequest("", time.Since(start))
		if errors.Is(err, errStopped) {
			return nil, err
		}
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	a.metrics.ObserveLLMRequest(resp.StopReason, time.Since(start))
	return resp, nil
}

func (a *Agent) stream(ctx context.Context, req *llm.ChatRequest, emit emitFunc) (*llm.ChatResponse, error) {
	s, err := a.llm.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for {
		ev, err := s.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			break
		}
		if ev.Text == "" {
			continue
		}
		if !emit(Event{Type: EventText, Text: ev.Text}) {
			return nil, errStopped
		}
	}

	resp := s.Response()
	if resp == nil {
		return nil, errors.New("stream ended without a response")
	}
	return resp, nil
}

// executeTools runs the requested tools in order and returns one result
// block per call, in the same order. On error the results of the calls that
// already ran are returned along with it.
func (a *Agent) executeTools(ctx context.Context, t *turn, uses []llm.ToolUseBlock, emit emitFunc) (llm.Content, error) {
	results := make(llm.Content, 0, len(uses))

	for _, use := range uses {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !emit(Event{Type: EventToolCall, ToolCall: &use}) {
			return results, errStopped
		}

		res := a.tools.Execute(ctx, use.Name, use.Input)
		t.result.ToolCalls++
		a.metrics.ObserveToolCall(use.Name, res.IsError)

		a.logger.Info("tool executed",
			"conversation_id", t.result.ConversationID,
			"tool", use.Name,
			"is_error", res.IsError,
		)

		block := llm.ToolResultBlock{ToolUseID: use.ID, Content: res.Content, IsError: res.IsError}
		results = append(results, block)

		if !emit(Event{Type: EventToolResult, ToolResult: &block}) {
			return results, errStopped
		}
	}

	return results, nil
}

// finish records metrics, logs the turn and hands its event to the publisher.
func (a *Agent) finish(ctx context.Context, t *turn, err error) {
	outcome := t.result.Outcome
	if err != nil {
		outcome = outcomeError
		if t.result.Outcome == "" {
			t.result.Outcome = OutcomeAborted
		}
	}
	a.metrics.ObserveTurn(string(outcome))

	elapsed := time.Since(t.started)
	if err != nil {
		a.logger.Error("turn failed",
			"conversation_id", t.result.ConversationID,
			"user_id", t.userID,
			"iterations", t.result.Iterations,
			"duration", elapsed,
			"error", err,
		)
	} else {
		a.logger.Info("turn completed",
			"conversation_id", t.result.ConversationID,
			"user_id", t.userID,
			"outcome", outcome,
			"stop_reason", t.result.StopReason,
			"iterations", t.result.Iterations,
			"tool_calls", t.result.ToolCalls,
			"memories_saved", t.result.MemoriesSaved,
			"duration", elapsed,
		)
	}

	if a.publisher == nil || t.result.ConversationID == 0 {
		return
	}

	event := eventstream.NewTurnCompletedEvent(time.Now())
	event.UserID = t.userID
	event.ConversationID = t.result.ConversationID
	event.FellBack = t.result.FellBack
	event.Model = t.model
	event.Outcome = string(outcome)
	event.StopReason = t.result.StopReason
	event.Iterations = t.result.Iterations
	event.ToolCalls = t.result.ToolCalls
	event.MemoriesSaved = t.result.MemoriesSaved
	event.StartedAt = t.started.UTC()
	event.DurationMs = elapsed.Milliseconds()

	if err := a.publisher.PublishTurn(context.WithoutCancel(ctx), event); err != nil {
		a.logger.Warn("turn event not published",
			"conversation_id", t.result.ConversationID,
			"error", err,
		)
	}
}
