/*
Package config loads llmtour settings and credentials.

# Settings

Settings come from an optional YAML or JSON file, overlaid by environment
variables:

	settings, err := config.LoadSettings("llmtour.yaml")
	settings.ApplyEnv(os.Getenv)

Credentials never live in the settings file. API keys are read from the
environment, which LoadDotenv may populate from a .env file.

# Credentials prelude

SetupTracingEnv reproduces the start of every tutorial: it turns tracing on
and asks for the LangSmith API key and project only when they are unset.

	env, err := config.SetupTracingEnv(config.NewTermPrompter())

# Typed values

Values wraps a map[string]any (for example the "options" block) with typed
accessors that return a default on a missing key or a type mismatch:

	opts := settings.ProviderOptions("qwen")
	timeout := opts.Duration("timeout", 30*time.Second)
*/
package config
