package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/llmtour/pkg/chatgraph/checkpoint"
	"github.com/randalmurphal/llmtour/pkg/config"
	"github.com/randalmurphal/llmtour/pkg/llm"
	"github.com/randalmurphal/llmtour/pkg/observability"
)

// app holds what every subcommand shares. It is built by the root
// command's PersistentPreRunE.
type app struct {
	out    io.Writer
	errOut io.Writer

	// Flags.
	configPath string
	envFile    string
	verbose    bool
	offline    bool
	store      string
	dbPath     string
	markdown   bool
	usage      bool

	settings config.Settings
	logger   *slog.Logger
	prompter config.Prompter
	meter    *usageMeter
	shutdown []func(context.Context) error
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, prompter: config.NewTermPrompter()}

	root := &cobra.Command{
		Use:           "llmtour",
		Short:         "Run the LLM tutorials from the command line",
		Long:          `Each subcommand is one tutorial: call a chat model, keep conversation memory in a graph, format prompts from templates, and answer questions from local documents with tracing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "settings file (YAML or JSON)")
	pf.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded at startup; a missing file is ignored")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.BoolVar(&a.offline, "offline", false, "answer locally instead of calling a model API")
	pf.StringVar(&a.store, "store", "", "conversation store: memory or sqlite")
	pf.StringVar(&a.dbPath, "db", "", "sqlite database path for --store sqlite")
	pf.BoolVar(&a.markdown, "markdown", false, "render model answers as markdown")
	pf.BoolVar(&a.usage, "usage", false, "print model call and token counts when done")

	root.AddCommand(
		newTranslateCmd(a),
		newChatCmd(a),
		newMemoryCmd(a),
		newTemplateCmd(a),
		newRAGCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// init loads the environment and settings and installs the meter.
func (a *app) init(ctx context.Context) error {
	if err := config.LoadDotenv(a.envFile); err != nil {
		return err
	}

	settings, err := config.LoadSettings(a.configPath)
	if err != nil {
		return err
	}
	settings.ApplyEnv(os.Getenv)
	if a.store != "" {
		settings.Memory.Store = a.store
	}
	if a.dbPath != "" {
		settings.Memory.Path = a.dbPath
		if a.store == "" {
			settings.Memory.Store = config.StoreSQLite
		}
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	a.settings = settings

	a.logger = observability.NewLogger(a.errOut, a.verbose)
	llm.UseEmbeddedEncodings()
	a.logger.Debug("settings loaded", slog.Any("settings", settings))

	if a.usage {
		a.meter = newUsageMeter()
		a.shutdown = append(a.shutdown, a.meter.shutdown)
	}
	return nil
}

// run wraps a subcommand body so usage is printed after a successful run
// and stores and exporters are closed either way.
func (a *app) run(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		err := fn(ctx, args)
		if err == nil && a.meter != nil {
			err = a.meter.print(ctx, a.out)
		}
		a.close(ctx)
		return err
	}
}

// close runs the shutdown hooks in reverse order.
func (a *app) close(ctx context.Context) {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			a.logger.Warn("shutdown failed", slog.Any("error", err))
		}
	}
	a.shutdown = nil
}

// setupTracing runs the credentials prelude and installs the tracer
// provider. Offline runs skip both.
func (a *app) setupTracing(ctx context.Context) error {
	if a.offline {
		return nil
	}
	if _, err := config.SetupTracingEnv(a.prompter); err != nil {
		return err
	}
	a.settings.ApplyEnv(os.Getenv)

	var spans io.Writer = io.Discard
	if a.verbose {
		spans = a.errOut
	}
	shutdown, err := observability.Setup(ctx, observability.TracingConfig{
		Enabled:  a.settings.Tracing.Enabled,
		APIKey:   a.settings.Tracing.APIKey,
		Project:  a.settings.Tracing.Project,
		Endpoint: a.settings.Tracing.Endpoint,
		Writer:   spans,
	})
	if err != nil {
		return err
	}
	a.shutdown = append(a.shutdown, shutdown)
	a.logger.Debug("tracing configured",
		slog.String("project", a.settings.Tracing.Project),
		slog.String("api_key", config.Redact(a.settings.Tracing.APIKey)))
	return nil
}

// chatModel returns the client for model served by provider, observed for
// logging and usage metrics.
func (a *app) chatModel(model, provider string, opts ...llm.OpenAIOption) (llm.Client, error) {
	var inner llm.Client
	if a.offline {
		inner = newOfflineClient(model)
	} else {
		if p, ok := llm.LookupProvider(provider); ok && p.Name == "openai" {
			if _, err := config.EnsureEnv(p.APIKeyEnv, config.PromptOpenAIKey, a.prompter); err != nil {
				return nil, err
			}
		}
		// Later options win: settings, then the options block, then the caller.
		var base []llm.OpenAIOption
		if a.settings.Temperature != nil {
			base = append(base, llm.WithDefaultTemperature(*a.settings.Temperature))
		}
		base = append(base, clientOptions(a.settings.ProviderOptions(provider))...)
		client, err := llm.InitChatModel(model, provider, append(base, opts...)...)
		if err != nil {
			return nil, err
		}
		inner = client
	}

	observeOpts := []llm.ObserveOption{llm.WithCallLogger(a.logger)}
	if a.meter != nil {
		observeOpts = append(observeOpts, llm.WithMetricsRecorder(a.meter.recorder))
	}
	return llm.Observe(inner, observeOpts...), nil
}

// model returns the configured model, or name when none is set.
func (a *app) model(name string) string {
	if a.settings.Model != "" {
		return a.settings.Model
	}
	return name
}

// provider returns the configured provider, or name when none is set.
func (a *app) provider(name string) string {
	if a.settings.Provider != "" {
		return a.settings.Provider
	}
	return name
}

// checkpointStore opens the configured conversation store.
func (a *app) checkpointStore() (checkpoint.Store, error) {
	if a.settings.Memory.Store == config.StoreSQLite {
		store, err := checkpoint.NewSQLiteStore(a.settings.Memory.Path)
		if err != nil {
			return nil, err
		}
		a.shutdown = append(a.shutdown, func(context.Context) error { return store.Close() })
		return store, nil
	}
	return checkpoint.NewMemoryStore(), nil
}
