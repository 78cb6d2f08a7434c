package sse

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const anthropicStream = "event: message_start\n" +
	"data: {\"type\":\"message_start\"}\n\n" +
	": ping\n\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n\n"

var _ = Describe("Reader", func() {
	drain := func(r *Reader) []*Event {
		var events []*Event
		for {
			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			if ev == nil {
				return events
			}
			events = append(events, ev)
		}
	}

	It("parses typed Anthropic events and skips comments", func() {
		events := drain(NewReader(strings.NewReader(anthropicStream)))

		Expect(events).To(HaveLen(3))
		Expect(events[0].Type).To(Equal("message_start"))
		Expect(events[1].Type).To(Equal("content_block_delta"))
		Expect(events[1].Data).To(ContainSubstring(`"text":"Hi"`))
		Expect(events[2].Type).To(Equal("message_stop"))
	})

	It("joins multiple data lines with a newline", func() {
		events := drain(NewReader(strings.NewReader("data: one\ndata: two\n\n")))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("one\ntwo"))
	})

	It("keeps the id field", func() {
		events := drain(NewReader(strings.NewReader("id: 7\ndata: x\n\n")))
		Expect(events[0].ID).To(Equal("7"))
	})

	It("accepts fields without a space after the colon", func() {
		events := drain(NewReader(strings.NewReader("data:tight\n\n")))
		Expect(events[0].Data).To(Equal("tight"))
	})

	It("returns an event cut off by the end of the stream", func() {
		events := drain(NewReader(strings.NewReader("event: message_stop\ndata: {}")))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal("message_stop"))
	})

	It("returns nil on empty or blank input", func() {
		Expect(drain(NewReader(strings.NewReader("")))).To(BeEmpty())
		Expect(drain(NewReader(strings.NewReader("\n\n\n")))).To(BeEmpty())
	})

	It("ignores unknown fields and retry", func() {
		events := drain(NewReader(strings.NewReader("retry: 100\nfoo: bar\ndata: ok\n\n")))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("ok"))
	})

	It("copies the raw stream to the transcript", func() {
		var transcript bytes.Buffer
		drain(NewTeeReader(strings.NewReader(anthropicStream), &transcript))
		Expect(transcript.String()).To(Equal(anthropicStream))
	})
})
