package app_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/agent"
	"github.com/papercomputeco/tether/pkg/app"
	"github.com/papercomputeco/tether/pkg/config"
	"github.com/papercomputeco/tether/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/tether/pkg/logger"
	"github.com/papercomputeco/tether/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/tether/pkg/utils/test"
)

var _ = Describe("App", func() {
	var (
		ctx    context.Context
		cfg    *config.Config
		tmpDir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.NewDefaultConfig()
		cfg.Storage.SQLitePath = ":memory:"

		var err error
		tmpDir, err = os.MkdirTemp("", "app-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("wires a runtime that runs turns", func() {
		client := testutils.NewScriptedClient(testutils.TextResponse("Hola"))
		a, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), LLM: client, ConfigDir: tmpDir})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		Expect(a.Tools.Names()).To(Equal([]string{"calculator", "get_weather", "get_time"}))
		Expect(a.Memory).NotTo(BeNil())

		result, err := a.Agent.Run(ctx, agent.TurnRequest{Message: "Recuerda que mi color favorito es el azul."})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(agent.OutcomeDone))

		mems, err := a.Store.ListMemories(ctx, "default")
		Expect(err).NotTo(HaveOccurred())
		Expect(mems).NotTo(BeEmpty())

		families, err := a.Registry.Gather()
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(families))
		for _, f := range families {
			names = append(names, f.GetName())
		}
		Expect(names).To(ContainElements("tether_turns_total", "tether_llm_requests_total", "go_goroutines"))

		Expect(client.Requests()[0].Model).To(Equal(cfg.LLM.Model))
	})

	It("leaves memory out when disabled", func() {
		disabled := false
		cfg.Memory.Enabled = &disabled

		a, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), LLM: testutils.NewScriptedClient()})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		Expect(a.Memory).To(BeNil())
	})

	It("builds the anthropic client from the configured key variable", func() {
		cfg.LLM.APIKeyEnv = "TEST_TETHER_KEY"
		getenv := func(name string) string {
			if name == "TEST_TETHER_KEY" {
				return "sk-test"
			}
			return ""
		}

		a, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), Getenv: getenv})
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		Expect(a.LLM).To(BeAssignableToTypeOf(&anthropic.Client{}))
	})

	It("fails without an API key", func() {
		_, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), Getenv: func(string) string { return "" }})
		Expect(err).To(MatchError(ContainSubstring("ANTHROPIC_API_KEY")))
	})

	It("rejects unknown providers", func() {
		cfg.LLM.Provider = "openai"
		_, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), Getenv: func(string) string { return "k" }})
		Expect(err).To(MatchError(ContainSubstring("unsupported llm provider")))
	})

	It("rejects an unknown storage driver", func() {
		cfg.Storage.Driver = "mongo"
		_, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), LLM: testutils.NewScriptedClient()})
		Expect(err).To(MatchError(ContainSubstring("unsupported storage driver")))
	})

	It("requires a DSN for postgres", func() {
		cfg.Storage.Driver = "postgres"
		_, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), LLM: testutils.NewScriptedClient()})
		Expect(err).To(MatchError(ContainSubstring("postgres_dsn")))
	})

	It("requires brokers for kafka", func() {
		cfg.EventStream.Provider = "kafka"
		_, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), LLM: testutils.NewScriptedClient()})
		Expect(err).To(MatchError(ContainSubstring("kafka brokers are required")))
	})

	It("rejects an unknown eventstream provider", func() {
		cfg.EventStream.Provider = "nats"
		_, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), LLM: testutils.NewScriptedClient()})
		Expect(err).To(MatchError(ContainSubstring("unsupported eventstream provider")))
	})

	It("accepts an injected store", func() {
		store := inmemory.NewDriver()
		a, err := app.New(ctx, cfg, app.Options{Logger: logger.Nop(), LLM: testutils.NewScriptedClient(), Store: store})
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Store).To(BeIdenticalTo(store))
		Expect(a.Close()).To(Succeed())
	})

	Describe("SQLitePath", func() {
		It("defaults to tether.db in the tether directory", func() {
			path, err := app.SQLitePath(config.StorageConfig{}, tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Base(path)).To(Equal(app.DefaultSQLiteFile))
		})

		It("keeps a configured path", func() {
			path, err := app.SQLitePath(config.StorageConfig{SQLitePath: "/tmp/x.db"}, tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("/tmp/x.db"))
		})
	})
})
