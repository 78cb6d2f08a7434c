package cmdutil_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	"github.com/papercomputeco/tether/pkg/config"
	"github.com/papercomputeco/tether/pkg/logger"
)

func newCmd(configDir string) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String(cmdutil.FlagConfigDir, configDir, "")
	cmd.Flags().Bool(cmdutil.FlagDebug, false, "")
	return cmd
}

var _ = Describe("LoadConfig", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("returns the defaults without a config file", func() {
		cfg, err := cmdutil.LoadConfig(newCmd(dir))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		Expect(cfg.Agent.MaxIterations).To(Equal(uint(10)))
		Expect(cfg.Memory.IsEnabled()).To(BeTrue())
	})

	It("reads values from config.toml", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.SetConfigValue("llm.model", "claude-from-file")).To(Succeed())

		cfg, err := cmdutil.LoadConfig(newCmd(dir))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Model).To(Equal("claude-from-file"))
	})

	It("prefers a changed flag over the config file", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.SetConfigValue("llm.model", "claude-from-file")).To(Succeed())

		var model string
		cmd := newCmd(dir)
		config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
		Expect(cmd.Flags().Set("model", "claude-from-flag")).To(Succeed())

		cfg, err := cmdutil.LoadConfig(cmd, config.FlagModel)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Model).To(Equal("claude-from-flag"))
	})

	It("registers the storage flags", func() {
		var f cmdutil.StorageFlags
		cmd := newCmd(dir)
		cmdutil.AddStorageFlags(cmd, &f)
		Expect(cmd.Flags().Set("sqlite", "/tmp/other.db")).To(Succeed())

		cfg, err := cmdutil.LoadConfig(cmd, cmdutil.StorageFlagKeys...)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/other.db"))
		Expect(f.SQLitePath).To(Equal("/tmp/other.db"))
	})

	It("reads TETHER_ environment variables", func() {
		Expect(os.Setenv("TETHER_API_LISTEN", ":9999")).To(Succeed())
		DeferCleanup(func() { _ = os.Unsetenv("TETHER_API_LISTEN") })

		cfg, err := cmdutil.LoadConfig(newCmd(dir))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.Listen).To(Equal(":9999"))
	})
})

var _ = Describe("Flags", func() {
	It("reads the debug and config dir flags", func() {
		cmd := newCmd("/tmp/tether-config")
		Expect(cmdutil.ConfigDir(cmd)).To(Equal("/tmp/tether-config"))
		Expect(cmdutil.Debug(cmd)).To(BeFalse())

		Expect(cmd.Flags().Set(cmdutil.FlagDebug, "true")).To(Succeed())
		Expect(cmdutil.Debug(cmd)).To(BeTrue())
	})
})

var _ = Describe("WithLogFile", func() {
	It("returns the logger unchanged without a path", func() {
		base := logger.Nop()
		log, closeLog, err := cmdutil.WithLogFile(newCmd(""), base, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(log).To(BeIdenticalTo(base))
		Expect(closeLog()).To(Succeed())
	})

	It("writes to the terminal logger and appends JSON to the file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "serve.log")
		Expect(os.WriteFile(path, []byte("{\"msg\":\"earlier\"}\n"), 0o644)).To(Succeed())

		var terminal bytes.Buffer
		log, closeLog, err := cmdutil.WithLogFile(newCmd(""), logger.New(logger.WithWriter(&terminal)), path)
		Expect(err).NotTo(HaveOccurred())

		log.Info("server listening", "addr", ":8082")
		log.Debug("hidden without --debug")
		Expect(closeLog()).To(Succeed())

		Expect(terminal.String()).To(ContainSubstring("server listening"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).To(HaveLen(2))

		var entry map[string]any
		Expect(json.Unmarshal([]byte(lines[1]), &entry)).To(Succeed())
		Expect(entry["msg"]).To(Equal("server listening"))
		Expect(entry["addr"]).To(Equal(":8082"))
		Expect(entry).To(HaveKey("source"))
	})

	It("fails when the file cannot be opened", func() {
		path := filepath.Join(GinkgoT().TempDir(), "missing", "serve.log")
		_, _, err := cmdutil.WithLogFile(newCmd(""), logger.Nop(), path)
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})
