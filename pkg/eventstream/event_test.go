package eventstream_test

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("fills the envelope", func() {
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
		event := eventstream.NewTurnCompletedEvent(now)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal("tether.turn.completed"))
		Expect(event.EmittedAt).To(Equal(now.UTC()))

		_, err := uuid.Parse(event.EventID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("issues a distinct id per event", func() {
		now := time.Now()
		Expect(eventstream.NewTurnCompletedEvent(now).EventID).
			NotTo(Equal(eventstream.NewTurnCompletedEvent(now).EventID))
	})

	It("marshals with expected top-level keys", func() {
		event := eventstream.NewTurnCompletedEvent(time.Unix(1735689600, 0))
		event.UserID = "user-a"
		event.ConversationID = 12
		event.Outcome = "done"
		event.StopReason = "end_turn"
		event.Iterations = 2

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		for _, key := range []string{
			"schema_version", "event_type", "event_id", "emitted_at",
			"user_id", "conversation_id", "outcome", "stop_reason", "iterations",
		} {
			Expect(got).To(HaveKey(key))
		}
		Expect(got).NotTo(HaveKey("fell_back"))
	})

	It("provides ErrNilTurnEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilTurnEvent).To(MatchError("nil turn event"))
	})
})
