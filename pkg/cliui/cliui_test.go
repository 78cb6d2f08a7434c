package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("FormatDuration", func() {
		It("uses milliseconds below a second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses seconds with one decimal otherwise", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("FormatTime", func() {
		It("renders zero times as a dash", func() {
			Expect(cliui.FormatTime(time.Time{})).To(Equal("-"))
		})
	})

	Describe("Step", func() {
		It("returns the error of the step and prints its message", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")

			err := cliui.Step(&buf, "Opening store", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring("Opening store"))
		})
	})

	Describe("Mark", func() {
		It("differs for success and failure", func() {
			Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
			Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
		})
	})
})
