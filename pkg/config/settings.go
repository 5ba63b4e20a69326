package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Memory store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Environment variables read by ApplyEnv.
const (
	EnvProvider        = "LLMTOUR_PROVIDER"
	EnvModel           = "LLMTOUR_MODEL"
	EnvTemperature     = "LLMTOUR_TEMPERATURE"
	EnvStore           = "LLMTOUR_STORE"
	EnvStorePath       = "LLMTOUR_DB"
	EnvDocsDir         = "LLMTOUR_DOCS_DIR"
	EnvTracing         = "LANGSMITH_TRACING"
	EnvTracingAPIKey   = "LANGSMITH_API_KEY"
	EnvTracingProject  = "LANGSMITH_PROJECT"
	EnvTracingEndpoint = "LANGSMITH_ENDPOINT"
)

// Settings configures the CLI and the packages it assembles.
// An empty Provider or Model leaves the choice to each tutorial.
type Settings struct {
	Provider    string   `yaml:"provider" json:"provider"`
	Model       string   `yaml:"model" json:"model"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	Memory  MemorySettings  `yaml:"memory" json:"memory"`
	RAG     RAGSettings     `yaml:"rag" json:"rag"`
	Tracing TracingSettings `yaml:"tracing" json:"tracing"`

	// Options tunes the chat model client: base_url, timeout, max_tokens and
	// temperature, shared or nested under a provider name. Read them through
	// ProviderOptions.
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// MemorySettings selects where conversation threads are kept.
type MemorySettings struct {
	Store string `yaml:"store" json:"store"`
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
}

// RAGSettings configures document loading and retrieval.
type RAGSettings struct {
	DocsDir        string  `yaml:"docs_dir" json:"docs_dir"`
	ChunkSize      int     `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap" json:"chunk_overlap"`
	TopK           int     `yaml:"top_k" json:"top_k"`
	ScoreThreshold float32 `yaml:"score_threshold,omitempty" json:"score_threshold,omitempty"`
	IndexPath      string  `yaml:"index_path,omitempty" json:"index_path,omitempty"`
	EmbeddingModel string  `yaml:"embedding_model,omitempty" json:"embedding_model,omitempty"`
}

// TracingSettings configures span export. APIKey only ever comes from the
// environment.
type TracingSettings struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Project  string `yaml:"project" json:"project"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	APIKey   string `yaml:"-" json:"-"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		Memory: MemorySettings{Store: StoreMemory},
		RAG: RAGSettings{
			DocsDir:      "docs",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         4,
		},
		Tracing: TracingSettings{Project: "default"},
	}
}

// LoadSettings reads path over DefaultSettings. An empty path returns the
// defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config file: %w", err)
	}
	if err := decode(path, data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// ApplyEnv overlays environment values onto s. Unset or empty variables
// leave the file value in place; malformed numbers and booleans are ignored.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvProvider); v != "" {
		s.Provider = v
	}
	if v := getenv(EnvModel); v != "" {
		s.Model = v
	}
	if v := getenv(EnvTemperature); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			s.Temperature = &t
		}
	}
	if v := getenv(EnvStore); v != "" {
		s.Memory.Store = v
	}
	if v := getenv(EnvStorePath); v != "" {
		s.Memory.Path = v
	}
	if v := getenv(EnvDocsDir); v != "" {
		s.RAG.DocsDir = v
	}
	if v := getenv(EnvTracing); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Tracing.Enabled = b
		}
	}
	if v := getenv(EnvTracingProject); v != "" {
		s.Tracing.Project = v
	}
	if v := getenv(EnvTracingEndpoint); v != "" {
		s.Tracing.Endpoint = v
	}
	s.Tracing.APIKey = getenv(EnvTracingAPIKey)
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	switch s.Memory.Store {
	case StoreMemory:
	case StoreSQLite:
		if s.Memory.Path == "" {
			errs = append(errs, errors.New("memory.path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown memory store %q (want %s or %s)", s.Memory.Store, StoreMemory, StoreSQLite))
	}
	if s.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive, got %d", s.RAG.ChunkSize))
	}
	if s.RAG.ChunkOverlap < 0 || s.RAG.ChunkOverlap >= s.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", s.RAG.ChunkOverlap))
	}
	if s.RAG.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must be positive, got %d", s.RAG.TopK))
	}
	return errors.Join(errs...)
}

// OptionValues returns the options block as written.
func (s Settings) OptionValues() Values {
	return NewValues(s.Options)
}

// ProviderOptions returns the options that apply to provider: the shared
// keys with the provider's own block laid over them.
func (s Settings) ProviderOptions(provider string) Values {
	return s.OptionValues().Overlay(provider)
}

// LogValue implements slog.LogValuer with secrets redacted.
func (s Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", s.Provider),
		slog.String("model", s.Model),
		slog.String("store", s.Memory.Store),
		slog.Bool("tracing", s.Tracing.Enabled),
		slog.String("project", s.Tracing.Project),
		slog.String("tracing_api_key", Redact(s.Tracing.APIKey)),
	)
}

// Redact hides all but the edges of a secret.
func Redact(secret string) string {
	switch {
	case secret == "":
		return "(unset)"
	case len(secret) <= 12:
		return "****"
	default:
		return secret[:3] + "****" + secret[len(secret)-4:]
	}
}
