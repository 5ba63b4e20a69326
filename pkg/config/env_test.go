package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/llmtour/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prompt struct {
	label  string
	secret bool
}

type fakePrompter struct {
	answers map[string]string
	err     error
	asked   []prompt
}

func (f *fakePrompter) Prompt(label string, secret bool) (string, error) {
	f.asked = append(f.asked, prompt{label, secret})
	if f.err != nil {
		return "", f.err
	}
	return f.answers[label], nil
}

func TestEnsureEnv_AlreadySet(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-present")
	p := &fakePrompter{}

	v, err := config.EnsureEnv("OPENAI_API_KEY", config.PromptOpenAIKey, p)
	require.NoError(t, err)
	assert.Equal(t, "sk-present", v)
	assert.Empty(t, p.asked)
}

func TestEnsureEnv_PromptsHidden(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	p := &fakePrompter{answers: map[string]string{config.PromptOpenAIKey: "sk-typed"}}

	v, err := config.EnsureEnv("OPENAI_API_KEY", config.PromptOpenAIKey, p)
	require.NoError(t, err)
	assert.Equal(t, "sk-typed", v)
	assert.Equal(t, "sk-typed", os.Getenv("OPENAI_API_KEY"))
	assert.Equal(t, []prompt{{config.PromptOpenAIKey, true}}, p.asked)
}

func TestEnsureEnv_PromptError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	boom := errors.New("tty gone")

	_, err := config.EnsureEnv("OPENAI_API_KEY", config.PromptOpenAIKey, &fakePrompter{err: boom})
	assert.ErrorIs(t, err, boom)
}

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestSetupTracingEnv_PromptsForMissing(t *testing.T) {
	t.Setenv(config.EnvTracing, "")
	unsetenv(t, config.EnvTracingAPIKey)
	unsetenv(t, config.EnvTracingProject)
	p := &fakePrompter{answers: map[string]string{config.PromptTracingKey: "lsv2_key"}}

	env, err := config.SetupTracingEnv(p)
	require.NoError(t, err)

	assert.Equal(t, config.TracingEnv{APIKey: "lsv2_key", Project: "default"}, env)
	assert.Equal(t, "true", os.Getenv(config.EnvTracing))
	assert.Equal(t, "lsv2_key", os.Getenv(config.EnvTracingAPIKey))
	assert.Equal(t, "default", os.Getenv(config.EnvTracingProject))
	assert.Equal(t, []prompt{
		{config.PromptTracingKey, true},
		{config.PromptTracingProject, false},
	}, p.asked)
}

func TestSetupTracingEnv_NoPromptWhenSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		project string
	}{
		{name: "values", key: "lsv2_existing", project: "tour"},
		{name: "empty values", key: "", project: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvTracing, "")
			t.Setenv(config.EnvTracingAPIKey, tt.key)
			t.Setenv(config.EnvTracingProject, tt.project)
			p := &fakePrompter{}

			env, err := config.SetupTracingEnv(p)
			require.NoError(t, err)
			assert.Equal(t, config.TracingEnv{APIKey: tt.key, Project: tt.project}, env)
			assert.Empty(t, p.asked)
		})
	}
}

func TestSetupTracingEnv_KeyOptional(t *testing.T) {
	t.Setenv(config.EnvTracing, "")
	unsetenv(t, config.EnvTracingAPIKey)
	unsetenv(t, config.EnvTracingProject)
	p := &fakePrompter{answers: map[string]string{config.PromptTracingProject: "mine"}}

	env, err := config.SetupTracingEnv(p)
	require.NoError(t, err)
	assert.Empty(t, env.APIKey)
	assert.Equal(t, "mine", env.Project)

	// An empty key answer is exported so later runs do not ask again.
	v, ok := os.LookupEnv(config.EnvTracingAPIKey)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestTermPrompter_NonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	p := &config.TermPrompter{In: f, Out: os.Stderr}
	v, err := p.Prompt("label: ", true)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LLMTOUR_TEST_VAR=from-file\n"), 0o644))
	t.Setenv("LLMTOUR_TEST_VAR", "from-env")

	require.NoError(t, config.LoadDotenv(filepath.Join(dir, "missing.env"), path))
	// Files override the environment.
	assert.Equal(t, "from-file", os.Getenv("LLMTOUR_TEST_VAR"))
}

func TestLoadDotenv_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BROKEN='unterminated\n"), 0o644))

	err := config.LoadDotenv(path)
	assert.ErrorContains(t, err, "load env file")
}
