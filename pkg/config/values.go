package config

import (
	"time"
)

// Values reads loosely typed settings such as the "options" block. Each
// accessor returns def when the key is missing or holds a value that does
// not convert cleanly. YAML and JSON numbers both decode as int or float64.
type Values struct {
	data map[string]any
}

// NewValues wraps data. A nil map behaves as empty.
func NewValues(data map[string]any) Values {
	return Values{data: data}
}

func (v Values) String(key, def string) string {
	if s, ok := v.data[key].(string); ok {
		return s
	}
	return def
}

// Duration accepts "30s"-style strings and plain numbers of seconds.
func (v Values) Duration(key string, def time.Duration) time.Duration {
	switch val := v.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	}
	return def
}

// Int rejects floats with a fractional part.
func (v Values) Int(key string, def int) int {
	switch val := v.data[key].(type) {
	case int:
		return val
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return def
}

func (v Values) Float(key string, def float64) float64 {
	switch val := v.data[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return def
}

// Sub returns the block nested under key, empty when there is none.
func (v Values) Sub(key string) Values {
	m, _ := v.data[key].(map[string]any)
	return NewValues(m)
}

// Overlay returns v with the entries of the block under key laid over it.
// It lets a provider block override a shared setting:
//
//	options:
//	  timeout: 30s
//	  qwen:
//	    timeout: 2m
func (v Values) Overlay(key string) Values {
	sub := v.Sub(key)
	merged := make(map[string]any, len(v.data)+len(sub.data))
	for k, val := range v.data {
		if _, nested := val.(map[string]any); !nested {
			merged[k] = val
		}
	}
	for k, val := range sub.data {
		merged[k] = val
	}
	return NewValues(merged)
}
