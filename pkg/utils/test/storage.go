package testutils

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/storage"
)

// DescribeDriver registers the behavior every storage.Driver must share.
// newDriver is called before each spec and the driver is closed after it.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" storage behavior", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				driver.Close()
			}
		})

		Describe("conversations", func() {
			It("creates a conversation with a default title and owner", func() {
				conv, err := driver.CreateConversation(ctx, "", "")
				Expect(err).NotTo(HaveOccurred())
				Expect(conv.ID).To(BeNumerically(">", 0))
				Expect(conv.UserID).To(Equal(storage.DefaultUserID))
				Expect(conv.Title).To(HavePrefix("Conversation "))

				got, err := driver.GetConversation(ctx, conv.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(conv.ID))
				Expect(got.UserID).To(Equal(storage.DefaultUserID))
				Expect(got.Title).To(Equal(conv.Title))
			})

			It("keeps an explicit title", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "Trip planning")
				Expect(err).NotTo(HaveOccurred())
				Expect(conv.Title).To(Equal("Trip planning"))
				Expect(conv.UserID).To(Equal("alice"))
			})

			It("assigns distinct identifiers", func() {
				a, err := driver.CreateConversation(ctx, "alice", "a")
				Expect(err).NotTo(HaveOccurred())
				b, err := driver.CreateConversation(ctx, "alice", "b")
				Expect(err).NotTo(HaveOccurred())
				Expect(a.ID).NotTo(Equal(b.ID))
			})

			It("returns a not found error for unknown identifiers", func() {
				_, err := driver.GetConversation(ctx, 424242)
				Expect(err).To(HaveOccurred())
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("lists conversations per user", func() {
				_, err := driver.CreateConversation(ctx, "alice", "one")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateConversation(ctx, "bob", "two")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateConversation(ctx, "alice", "three")
				Expect(err).NotTo(HaveOccurred())

				alice, err := driver.ListConversationsByUser(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(alice).To(HaveLen(2))
				for _, c := range alice {
					Expect(c.UserID).To(Equal("alice"))
				}

				all, err := driver.ListConversations(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(3))
			})

			It("lists the most recently updated conversation first", func() {
				older, err := driver.CreateConversation(ctx, "alice", "older")
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.CreateConversation(ctx, "alice", "newer")
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.AddMessage(ctx, older.ID, llm.RoleUser, llm.Content{llm.TextBlock{Text: "bump"}})
				Expect(err).NotTo(HaveOccurred())

				convs, err := driver.ListConversationsByUser(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(convs).To(HaveLen(2))
				Expect(convs[0].ID).To(Equal(older.ID))

				got, err := driver.GetConversation(ctx, older.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.UpdatedAt).To(BeTemporally(">=", got.CreatedAt))
			})
		})

		Describe("messages", func() {
			It("round-trips every block kind in insertion order", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "")
				Expect(err).NotTo(HaveOccurred())

				user := llm.Content{llm.TextBlock{Text: "What's the weather in Madrid?"}}
				assistant := llm.Content{
					llm.TextBlock{Text: "Let me check."},
					llm.ToolUseBlock{ID: "toolu_1", Name: "get_weather", Input: map[string]any{"city": "Madrid"}},
				}
				results := llm.Content{
					llm.ToolResultBlock{ToolUseID: "toolu_1", Content: `{"city":"Madrid"}`},
					llm.ToolResultBlock{ToolUseID: "toolu_2", Content: "Error: boom", IsError: true},
				}

				_, err = driver.AddMessage(ctx, conv.ID, llm.RoleUser, user)
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AddMessage(ctx, conv.ID, llm.RoleAssistant, assistant)
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.AddMessage(ctx, conv.ID, llm.RoleUser, results)
				Expect(err).NotTo(HaveOccurred())

				msgs, err := driver.GetMessages(ctx, conv.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(HaveLen(3))

				Expect(msgs[0].Role).To(Equal(llm.RoleUser))
				Expect(msgs[0].Content).To(Equal(user))
				Expect(msgs[1].Role).To(Equal(llm.RoleAssistant))
				Expect(msgs[1].Content).To(Equal(assistant))
				Expect(msgs[2].Content).To(Equal(results))

				for _, m := range msgs {
					Expect(m.ConversationID).To(Equal(conv.ID))
				}
				Expect(msgs[0].ID).To(BeNumerically("<", msgs[1].ID))
				Expect(msgs[1].ID).To(BeNumerically("<", msgs[2].ID))
			})

			It("returns no messages for an empty conversation", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "")
				Expect(err).NotTo(HaveOccurred())

				msgs, err := driver.GetMessages(ctx, conv.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(BeEmpty())
			})

			It("rejects messages for unknown conversations", func() {
				_, err := driver.AddMessage(ctx, 424242, llm.RoleUser, llm.Content{llm.TextBlock{Text: "hi"}})
				Expect(err).To(HaveOccurred())
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("memories", func() {
			It("deduplicates by user and content", func() {
				first, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "Prefiero respuestas cortas"})
				Expect(err).NotTo(HaveOccurred())
				second, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "Prefiero respuestas cortas"})
				Expect(err).NotTo(HaveOccurred())
				Expect(second).To(Equal(first))

				mems, err := driver.ListMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(mems).To(HaveLen(1))
				Expect(mems[0].Confidence).To(Equal(storage.DefaultConfidence))
			})

			It("keeps the highest confidence", func() {
				id, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "I live in Madrid", Confidence: 0.6})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "I live in Madrid", Confidence: 0.9})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "I live in Madrid", Confidence: 0.5})
				Expect(err).NotTo(HaveOccurred())

				mems, err := driver.ListMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(mems).To(HaveLen(1))
				Expect(mems[0].ID).To(Equal(id))
				Expect(mems[0].Confidence).To(BeNumerically("~", 0.9, 1e-9))
			})

			It("refreshes the update time of a re-saved memory", func() {
				_, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "first fact"})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "second fact"})
				Expect(err).NotTo(HaveOccurred())
				_, err = driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "first fact"})
				Expect(err).NotTo(HaveOccurred())

				mems, err := driver.ListMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(mems).To(HaveLen(2))
				Expect(mems[0].Content).To(Equal("first fact"))
				Expect(mems[0].UpdatedAt).To(BeTemporally(">=", mems[0].CreatedAt))
			})

			It("compares content without surrounding whitespace", func() {
				first, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "Uso Linux"})
				Expect(err).NotTo(HaveOccurred())
				padded, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "  Uso Linux\n"})
				Expect(err).NotTo(HaveOccurred())
				Expect(padded).To(Equal(first))

				other, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "uso  linux"})
				Expect(err).NotTo(HaveOccurred())
				Expect(other).NotTo(Equal(first))

				mems, err := driver.ListMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(mems).To(HaveLen(2))
				for _, m := range mems {
					Expect(m.Content).To(Equal(strings.TrimSpace(m.Content)))
				}
			})

			It("rejects blank content", func() {
				_, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "   "})
				Expect(err).To(MatchError(storage.ErrEmptyMemory))
			})

			It("isolates users", func() {
				a, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: "Uso macOS"})
				Expect(err).NotTo(HaveOccurred())
				b, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "bob", Content: "Uso macOS"})
				Expect(err).NotTo(HaveOccurred())
				Expect(a).NotTo(Equal(b))

				mems, err := driver.ListMemories(ctx, "bob")
				Expect(err).NotTo(HaveOccurred())
				Expect(mems).To(HaveLen(1))
				Expect(mems[0].UserID).To(Equal("bob"))
			})

			It("records the source conversation", func() {
				conv, err := driver.CreateConversation(ctx, "alice", "")
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.SaveMemory(ctx, storage.SaveMemoryInput{
					UserID:               "alice",
					Content:              "Vivo en Madrid",
					SourceConversationID: &conv.ID,
				})
				Expect(err).NotTo(HaveOccurred())

				mems, err := driver.ListMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(mems).To(HaveLen(1))
				Expect(mems[0].SourceConversationID).NotTo(BeNil())
				Expect(*mems[0].SourceConversationID).To(Equal(conv.ID))
			})

			It("caps recent memories at the limit", func() {
				for _, content := range []string{"fact one", "fact two", "fact three"} {
					_, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: content})
					Expect(err).NotTo(HaveOccurred())
				}

				mems, err := driver.RecentMemories(ctx, "alice", 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(mems).To(HaveLen(2))
			})

			It("clears only the given user's memories", func() {
				for _, content := range []string{"fact one", "fact two"} {
					_, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "alice", Content: content})
					Expect(err).NotTo(HaveOccurred())
				}
				_, err := driver.SaveMemory(ctx, storage.SaveMemoryInput{UserID: "bob", Content: "fact one"})
				Expect(err).NotTo(HaveOccurred())

				n, err := driver.ClearMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(2))

				alice, err := driver.ListMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(alice).To(BeEmpty())

				bob, err := driver.ListMemories(ctx, "bob")
				Expect(err).NotTo(HaveOccurred())
				Expect(bob).To(HaveLen(1))

				n, err = driver.ClearMemories(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(0))
			})
		})
	})
}
