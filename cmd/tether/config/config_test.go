package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	configcmder "github.com/papercomputeco/tether/cmd/tether/config"
	"github.com/papercomputeco/tether/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	// run executes the config command under a root carrying --config-dir,
	// the way the tether root command does.
	run := func(args ...string) error {
		root := &cobra.Command{Use: "tether"}
		root.PersistentFlags().String(cmdutil.FlagConfigDir, "", "")
		root.AddCommand(configcmder.NewConfigCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"--config-dir", tmpDir, "config"}, args...))
		return root.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "llm.model", "claude-test")).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LLM.Model).To(Equal("claude-test"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "llm.model")).NotTo(Succeed())
			Expect(run("set")).NotTo(Succeed())
		})

		It("rejects invalid uint values", func() {
			Expect(run("set", "agent.max_iterations", "not-a-number")).NotTo(Succeed())
		})

		It("rejects invalid booleans", func() {
			Expect(run("set", "memory.enabled", "maybe")).NotTo(Succeed())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "agent.default_user", "ana")).To(Succeed())
			out.Reset()

			Expect(run("get", "agent.default_user")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("ana"))
		})

		It("shows defaults for unset keys", func() {
			Expect(run("get", "api.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(":8082"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).NotTo(Succeed())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			Expect(run("set", "eventstream.provider", "kafka")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
			Expect(out.String()).To(ContainSubstring(`"kafka"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).NotTo(Succeed())
		})
	})
})
