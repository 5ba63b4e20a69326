package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Provider describes where an OpenAI-compatible vendor keeps its credentials.
type Provider struct {
	// Name is the provider key used by InitChatModel (e.g. "openai").
	Name string
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
	// BaseURLEnv names the environment variable overriding the base URL.
	BaseURLEnv string
	// DefaultBaseURL is used when BaseURLEnv is unset. Empty means the
	// langchaingo default (api.openai.com).
	DefaultBaseURL string
}

var (
	providersMu sync.RWMutex
	providers   = map[string]Provider{
		"openai": {
			Name:       "openai",
			APIKeyEnv:  "OPENAI_API_KEY",
			BaseURLEnv: "OPENAI_BASE_URL",
		},
		"qwen": {
			Name:           "qwen",
			APIKeyEnv:      "QWEN_API_KEY",
			BaseURLEnv:     "QWEN_BASE_URL",
			DefaultBaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		},
	}
)

// RegisterProvider adds or replaces a provider.
func RegisterProvider(p Provider) {
	if p.Name == "" {
		panic("llm: provider name cannot be empty")
	}
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[strings.ToLower(p.Name)] = p
}

// LookupProvider returns the provider registered under name.
func LookupProvider(name string) (Provider, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	p, ok := providers[strings.ToLower(name)]
	return p, ok
}

// Providers returns the registered provider names in sorted order.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitChatModel builds a chat client for model served by provider.
// Credentials and base URL are read from the provider's environment
// variables; explicit opts are applied afterwards and win.
//
// Example:
//
//	client, err := llm.InitChatModel("gpt-4o-mini", "openai")
func InitChatModel(model, provider string, opts ...OpenAIOption) (*OpenAI, error) {
	p, ok := LookupProvider(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProvider, provider, strings.Join(Providers(), ", "))
	}

	base := []OpenAIOption{WithModel(model)}
	if key := os.Getenv(p.APIKeyEnv); key != "" {
		base = append(base, WithAPIKey(key))
	}
	if url := os.Getenv(p.BaseURLEnv); url != "" {
		base = append(base, WithBaseURL(url))
	} else if p.DefaultBaseURL != "" {
		base = append(base, WithBaseURL(p.DefaultBaseURL))
	}

	return NewOpenAI(append(base, opts...)...)
}
