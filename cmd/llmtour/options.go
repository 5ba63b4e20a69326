package main

import (
	"github.com/randalmurphal/llmtour/pkg/config"
	"github.com/randalmurphal/llmtour/pkg/llm"
)

// clientOptions maps an options block onto chat client options. Keys that
// are absent or malformed leave the client defaults alone.
func clientOptions(v config.Values) []llm.OpenAIOption {
	var opts []llm.OpenAIOption
	if url := v.String("base_url", ""); url != "" {
		opts = append(opts, llm.WithBaseURL(url))
	}
	if d := v.Duration("timeout", 0); d > 0 {
		opts = append(opts, llm.WithTimeout(d))
	}
	if n := v.Int("max_tokens", 0); n > 0 {
		opts = append(opts, llm.WithDefaultMaxTokens(n))
	}
	if t := v.Float("temperature", -1); t >= 0 {
		opts = append(opts, llm.WithDefaultTemperature(t))
	}
	return opts
}
