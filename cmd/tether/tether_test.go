package tethercmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	tethercmder "github.com/papercomputeco/tether/cmd/tether"
)

var _ = Describe("NewTetherCmd", func() {
	It("registers every subcommand", func() {
		cmd := tethercmder.NewTetherCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("chat", "serve", "conversations", "memories", "config", "version"))
	})

	It("has the global flags", func() {
		cmd := tethercmder.NewTetherCmd()
		Expect(cmd.PersistentFlags().Lookup("debug").Shorthand).To(Equal("d"))
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})
})
