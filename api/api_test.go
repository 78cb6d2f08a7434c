package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/tether/api"
	"github.com/papercomputeco/tether/pkg/agent"
	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/logger"
	"github.com/papercomputeco/tether/pkg/memory"
	"github.com/papercomputeco/tether/pkg/metrics"
	"github.com/papercomputeco/tether/pkg/sse"
	"github.com/papercomputeco/tether/pkg/storage"
	"github.com/papercomputeco/tether/pkg/storage/inmemory"
	"github.com/papercomputeco/tether/pkg/tools"
	"github.com/papercomputeco/tether/pkg/tools/builtin"
	testutils "github.com/papercomputeco/tether/pkg/utils/test"
)

var _ = Describe("Server", func() {
	var (
		ctx     context.Context
		store   *inmemory.Driver
		client  *testutils.ScriptedClient
		manager *memory.Manager
		reg     *prometheus.Registry
		cfg     api.Config
	)

	newServer := func() *api.Server {
		registry, err := tools.NewRegistry(logger.Nop(), builtin.Defaults()...)
		Expect(err).NotTo(HaveOccurred())

		a, err := agent.New(agent.Config{
			LLM:     client,
			Store:   store,
			Tools:   registry,
			Memory:  manager,
			Metrics: metrics.New(reg),
			Logger:  logger.Nop(),
			Model:   "claude-test",
		})
		Expect(err).NotTo(HaveOccurred())

		cfg.Agent = a
		s, err := api.NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	do := func(s *api.Server, method, target, body string) (*http.Response, []byte) {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, r)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := s.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, data
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		client = testutils.NewScriptedClient()
		reg = prometheus.NewRegistry()

		var err error
		manager, err = memory.NewManager(memory.ManagerConfig{Store: store, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		cfg = api.Config{
			ListenAddr: ":0",
			Store:      store,
			Memory:     manager,
			Gatherer:   reg,
			Logger:     logger.Nop(),
		}
	})

	Describe("NewServer", func() {
		It("requires an agent, a store and a logger", func() {
			_, err := api.NewServer(api.Config{Store: store, Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("agent is required")))
		})
	})

	Describe("GET /ping", func() {
		It("answers pong with a request id", func() {
			s := newServer()
			resp, body := do(s, http.MethodGet, "/ping", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal(`"pong"`))
			Expect(resp.Header.Get(api.RequestIDHeader)).NotTo(BeEmpty())
		})

		It("keeps a caller supplied request id", func() {
			s := newServer()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(api.RequestIDHeader, "req-123")
			resp, err := s.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get(api.RequestIDHeader)).To(Equal("req-123"))
		})
	})

	Describe("POST /v1/turns", func() {
		It("runs a turn and returns its result", func() {
			client = testutils.NewScriptedClient(testutils.TextResponse("Hola Ana"))
			s := newServer()

			resp, body := do(s, http.MethodPost, "/v1/turns", `{"message":"Me llamo Ana y vivo en Sevilla.","user_id":"ana"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result agent.TurnResult
			Expect(json.Unmarshal(body, &result)).To(Succeed())
			Expect(result.Outcome).To(Equal(agent.OutcomeDone))
			Expect(result.Reply).To(Equal("Hola Ana"))
			Expect(result.UserID).To(Equal("ana"))
			Expect(result.MemoriesSaved).To(Equal(1))
			Expect(result.Messages).To(HaveLen(2))
		})

		It("reports a fallback to a new conversation", func() {
			client = testutils.NewScriptedClient(testutils.TextResponse("ok"))
			s := newServer()

			_, body := do(s, http.MethodPost, "/v1/turns", `{"message":"hi","conversation_id":404}`)

			var result agent.TurnResult
			Expect(json.Unmarshal(body, &result)).To(Succeed())
			Expect(result.FellBack).To(BeTrue())
			Expect(result.RequestedConversationID).To(Equal(int64(404)))
		})

		It("rejects an empty message", func() {
			s := newServer()
			resp, body := do(s, http.MethodPost, "/v1/turns", `{"message":"   "}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("message is required"))
		})

		It("rejects a malformed body", func() {
			s := newServer()
			resp, _ := do(s, http.MethodPost, "/v1/turns", `{"message":`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns the conversation of a failed turn", func() {
			client.FailNext(errors.New("overloaded"))
			s := newServer()

			resp, body := do(s, http.MethodPost, "/v1/turns", `{"message":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var errResp api.TurnErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Error).To(ContainSubstring("overloaded"))
			Expect(errResp.ConversationID).NotTo(BeZero())
		})

		It("streams a turn as server-sent events", func() {
			client = testutils.NewScriptedClient(
				testutils.ToolUseResponse(llm.ToolUseBlock{ID: "toolu_1", Name: "get_weather", Input: map[string]any{"city": "Lima"}}),
				testutils.TextResponse("Sunny in Lima."),
			)
			s := newServer()

			resp, body := do(s, http.MethodPost, "/v1/turns?stream=true", `{"message":"Weather in Lima?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			r := sse.NewReader(strings.NewReader(string(body)))
			var types []string
			var text strings.Builder
			var last *sse.Event
			for {
				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				if ev == nil {
					break
				}
				types = append(types, ev.Type)
				last = ev
				if ev.Type == string(agent.EventText) {
					var payload agent.Event
					Expect(json.Unmarshal([]byte(ev.Data), &payload)).To(Succeed())
					text.WriteString(payload.Text)
				}
			}

			Expect(types[0]).To(Equal("conversation"))
			Expect(types).To(ContainElements("tool_call", "tool_result"))
			Expect(text.String()).To(Equal("Sunny in Lima."))
			Expect(last.Type).To(Equal("done"))

			var done agent.Event
			Expect(json.Unmarshal([]byte(last.Data), &done)).To(Succeed())
			Expect(done.Result.Outcome).To(Equal(agent.OutcomeDone))
			Expect(done.Result.ToolCalls).To(Equal(1))
		})

		It("ends a failed stream with an error event", func() {
			client.FailNext(errors.New("overloaded"))
			s := newServer()

			req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(`{"message":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")
			resp, err := s.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			Expect(string(body)).To(ContainSubstring("event: error"))
			Expect(string(body)).To(ContainSubstring("overloaded"))
		})
	})

	Describe("conversations", func() {
		var alice, bob *storage.Conversation

		BeforeEach(func() {
			var err error
			alice, err = store.CreateConversation(ctx, "alice", "Trip planning")
			Expect(err).NotTo(HaveOccurred())
			_, err = store.AddMessage(ctx, alice.ID, llm.RoleUser, llm.Content{llm.TextBlock{Text: "Plan a trip"}})
			Expect(err).NotTo(HaveOccurred())

			bob, err = store.CreateConversation(ctx, "bob", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists all conversations", func() {
			s := newServer()
			_, body := do(s, http.MethodGet, "/v1/conversations", "")

			var list api.ConversationListResponse
			Expect(json.Unmarshal(body, &list)).To(Succeed())
			Expect(list.Count).To(Equal(2))
		})

		It("lists conversations of one user", func() {
			s := newServer()
			_, body := do(s, http.MethodGet, "/v1/conversations?user_id=bob", "")

			var list api.ConversationListResponse
			Expect(json.Unmarshal(body, &list)).To(Succeed())
			Expect(list.Count).To(Equal(1))
			Expect(list.Conversations[0].ID).To(Equal(bob.ID))
		})

		It("returns an empty list for an unknown user", func() {
			s := newServer()
			_, body := do(s, http.MethodGet, "/v1/conversations?user_id=nobody", "")
			Expect(string(body)).To(ContainSubstring(`"conversations":[]`))
		})

		It("returns a conversation with its messages", func() {
			s := newServer()
			resp, body := do(s, http.MethodGet, "/v1/conversations/"+itoa(alice.ID), "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var conv api.ConversationResponse
			Expect(json.Unmarshal(body, &conv)).To(Succeed())
			Expect(conv.Conversation.Title).To(Equal("Trip planning"))
			Expect(conv.Messages).To(HaveLen(1))
			Expect(conv.Messages[0].Content.Text()).To(Equal("Plan a trip"))
		})

		It("returns 404 for an unknown conversation", func() {
			s := newServer()
			resp, body := do(s, http.MethodGet, "/v1/conversations/999", "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(string(body)).To(ContainSubstring("conversation not found"))
		})

		It("returns 400 for an invalid id", func() {
			s := newServer()
			resp, _ := do(s, http.MethodGet, "/v1/conversations/abc", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("memories", func() {
		BeforeEach(func() {
			for _, content := range []string{"Uso Linux y trabajo con Go.", "Prefiero respuestas cortas."} {
				_, err := store.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "ana", Content: content})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("lists a user's memories", func() {
			s := newServer()
			_, body := do(s, http.MethodGet, "/v1/users/ana/memories", "")

			var list api.MemoryListResponse
			Expect(json.Unmarshal(body, &list)).To(Succeed())
			Expect(list.Count).To(Equal(2))
		})

		It("saves a memory", func() {
			s := newServer()
			resp, body := do(s, http.MethodPost, "/v1/users/ana/memories", `{"content":"Tengo un gato.","confidence":0.5}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(string(body)).To(ContainSubstring(`"id":3`))

			mems, err := store.ListMemories(ctx, "ana")
			Expect(err).NotTo(HaveOccurred())
			Expect(mems).To(HaveLen(3))
		})

		It("rejects blank memories and out of range confidence", func() {
			s := newServer()
			resp, _ := do(s, http.MethodPost, "/v1/users/ana/memories", `{"content":"  "}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			resp, _ = do(s, http.MethodPost, "/v1/users/ana/memories", `{"content":"x","confidence":2}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("previews recall for a query", func() {
			s := newServer()
			_, body := do(s, http.MethodGet, "/v1/users/ana/memories/recall?q=linux", "")

			var recall api.MemoryRecallResponse
			Expect(json.Unmarshal(body, &recall)).To(Succeed())
			Expect(recall.Budget).To(Equal(memory.DefaultBudget))
			Expect(recall.Memories).To(Equal([]string{"Uso Linux y trabajo con Go."}))
		})

		It("clears a user's memories", func() {
			s := newServer()
			resp, body := do(s, http.MethodDelete, "/v1/users/ana/memories", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal(`{"deleted":2}`))

			mems, err := store.ListMemories(ctx, "ana")
			Expect(err).NotTo(HaveOccurred())
			Expect(mems).To(BeEmpty())
		})

		It("answers 503 without a memory manager", func() {
			cfg.Memory = nil
			manager = nil
			s := newServer()
			resp, body := do(s, http.MethodGet, "/v1/users/ana/memories", "")
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(string(body)).To(ContainSubstring(memory.ErrNotConfigured.Error()))
		})
	})

	Describe("GET /metrics", func() {
		It("exposes the registry", func() {
			client = testutils.NewScriptedClient(testutils.TextResponse("ok"))
			s := newServer()
			do(s, http.MethodPost, "/v1/turns", `{"message":"hi"}`)

			resp, body := do(s, http.MethodGet, "/metrics", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`tether_turns_total{outcome="done"} 1`))
		})
	})

	It("renders unknown routes as JSON errors", func() {
		s := newServer()
		resp, body := do(s, http.MethodGet, "/nope", "")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		Expect(string(body)).To(HavePrefix(`{"error":`))
	})
})
