package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompt labels shown for missing credentials.
const (
	PromptOpenAIKey      = "Enter API key for OpenAI: "
	PromptTracingKey     = "Enter your LangSmith API key (optional): "
	PromptTracingProject = `Enter your LangSmith Project Name (default = "default"): `
)

// Prompter asks the user for a value. Secret input is not echoed.
type Prompter interface {
	Prompt(label string, secret bool) (string, error)
}

// TermPrompter prompts on a terminal. When In is not a terminal every
// prompt answers "" without reading.
type TermPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTermPrompter prompts on stdin, writing labels to stderr.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{In: os.Stdin, Out: os.Stderr}
}

// Prompt implements Prompter.
func (p *TermPrompter) Prompt(label string, secret bool) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(p.Out, label)
	if secret {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// EnsureEnv returns the value of key, prompting for it (hidden) and
// exporting the answer when the variable is unset or empty. An empty answer
// leaves the variable as it was.
func EnsureEnv(key, label string, p Prompter) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	v, err := p.Prompt(label, true)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", nil
	}
	if err := os.Setenv(key, v); err != nil {
		return "", err
	}
	return v, nil
}

// TracingEnv is the tracing configuration SetupTracingEnv leaves in the
// environment.
type TracingEnv struct {
	APIKey  string
	Project string
}

// SetupTracingEnv turns tracing on and asks for the LangSmith key and
// project when they are absent from the environment. A variable that is
// present, even if empty, is left alone. The key is optional and an empty
// answer is exported as is; an empty project answer becomes "default".
func SetupTracingEnv(p Prompter) (TracingEnv, error) {
	if err := os.Setenv(EnvTracing, "true"); err != nil {
		return TracingEnv{}, err
	}

	key, err := promptIfAbsent(EnvTracingAPIKey, PromptTracingKey, true, "", p)
	if err != nil {
		return TracingEnv{}, err
	}
	project, err := promptIfAbsent(EnvTracingProject, PromptTracingProject, false, "default", p)
	if err != nil {
		return TracingEnv{}, err
	}

	return TracingEnv{APIKey: key, Project: project}, nil
}

// promptIfAbsent returns key's value when the variable exists. Otherwise it
// prompts, substitutes fallback for an empty answer and exports the result.
func promptIfAbsent(key, label string, secret bool, fallback string, p Prompter) (string, error) {
	if v, ok := os.LookupEnv(key); ok {
		return v, nil
	}
	v, err := p.Prompt(label, secret)
	if err != nil {
		return "", err
	}
	if v == "" {
		v = fallback
	}
	if err := os.Setenv(key, v); err != nil {
		return "", err
	}
	return v, nil
}
