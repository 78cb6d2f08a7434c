package versioncmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/tether/cmd/version"
	"github.com/papercomputeco/tether/pkg/utils"
)

var _ = Describe("NewVersionCmd", func() {
	It("prints the build information", func() {
		var out bytes.Buffer
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(utils.Version))
		Expect(out.String()).To(ContainSubstring("Sha:"))
		Expect(out.String()).To(ContainSubstring("Go:"))
	})

	It("prints only the version with --short", func() {
		var out bytes.Buffer
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--short"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal(utils.Version + "\n"))
	})
})
