// Package prompt builds chat prompts from message templates.
//
// A Template is an ordered list of parts. Text parts are role-tagged strings
// with {name} variables; placeholder parts splice in a list of messages,
// typically the conversation so far.
//
//	tmpl := prompt.FromMessages(
//	    prompt.System("You talk like a pirate. Answer all questions to the best of your ability."),
//	    prompt.Placeholder("messages"),
//	)
//	msgs, err := tmpl.Format(map[string]any{"messages": history})
package prompt

import (
	"errors"
	"fmt"
	"maps"

	"github.com/randalmurphal/llmtour/pkg/chatgraph"
	"github.com/randalmurphal/llmtour/pkg/llm"
)

// MessagesKey is the variable a placeholder conventionally reads.
const MessagesKey = "messages"

// ErrPlaceholderType indicates a placeholder variable is not a message list.
var ErrPlaceholderType = errors.New("placeholder value must be []llm.Message or llm.Message")

type partKind int

const (
	textPart partKind = iota
	placeholderPart
)

// Part is one element of a Template.
type Part struct {
	kind     partKind
	role     llm.Role
	text     string
	name     string
	optional bool
}

// System returns a system message part.
func System(text string) Part {
	return Part{kind: textPart, role: llm.RoleSystem, text: text}
}

// Human returns a user message part.
func Human(text string) Part {
	return Part{kind: textPart, role: llm.RoleUser, text: text}
}

// AI returns an assistant message part.
func AI(text string) Part {
	return Part{kind: textPart, role: llm.RoleAssistant, text: text}
}

// Placeholder returns a part replaced by the messages stored under name.
// The variable is required.
func Placeholder(name string) Part {
	return Part{kind: placeholderPart, name: name}
}

// OptionalPlaceholder is a Placeholder that formats to nothing when unset.
func OptionalPlaceholder(name string) Part {
	return Part{kind: placeholderPart, name: name, optional: true}
}

// Template is an immutable chat prompt template.
type Template struct {
	parts    []Part
	partials map[string]any
	expander *Expander
}

// FromMessages builds a Template from parts, in order.
func FromMessages(parts ...Part) *Template {
	return &Template{
		parts:    append([]Part(nil), parts...),
		expander: NewExpander(),
	}
}

// WithOptions returns a copy of t using the given expander options.
func (t *Template) WithOptions(opts ...Option) *Template {
	cp := t.clone()
	cp.expander = NewExpander(opts...)
	return cp
}

// Partial returns a copy of t with some variables bound.
// Values passed to Format take precedence over partials.
func (t *Template) Partial(vars map[string]any) *Template {
	cp := t.clone()
	if cp.partials == nil {
		cp.partials = make(map[string]any, len(vars))
	}
	maps.Copy(cp.partials, vars)
	return cp
}

func (t *Template) clone() *Template {
	return &Template{
		parts:    t.parts,
		partials: maps.Clone(t.partials),
		expander: t.expander,
	}
}

// InputVariables lists the variables Format needs that no partial binds,
// in order of first use.
func (t *Template) InputVariables() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if _, bound := t.partials[name]; !bound {
			names = append(names, name)
		}
	}
	for _, p := range t.parts {
		if p.kind == placeholderPart {
			if !p.optional {
				add(p.name)
			}
			continue
		}
		for _, name := range Variables(p.text) {
			add(name)
		}
	}
	return names
}

// Format renders the template into messages.
func (t *Template) Format(vars map[string]any) ([]llm.Message, error) {
	all := maps.Clone(t.partials)
	if all == nil {
		all = make(map[string]any, len(vars))
	}
	maps.Copy(all, vars)

	var out []llm.Message
	for _, p := range t.parts {
		switch p.kind {
		case placeholderPart:
			msgs, err := placeholderMessages(p, all)
			if err != nil {
				return nil, err
			}
			out = append(out, msgs...)
		default:
			text, err := t.expander.Expand(p.text, all)
			if err != nil {
				return nil, fmt.Errorf("format %s message: %w", p.role, err)
			}
			out = append(out, newMessage(p.role, text))
		}
	}
	return out, nil
}

// Invoke formats the template with the state's messages bound to
// MessagesKey, plus extra variables.
func (t *Template) Invoke(state chatgraph.MessagesState, extra map[string]any) ([]llm.Message, error) {
	vars := make(map[string]any, len(extra)+1)
	maps.Copy(vars, extra)
	vars[MessagesKey] = state.Messages
	return t.Format(vars)
}

func placeholderMessages(p Part, vars map[string]any) ([]llm.Message, error) {
	v, ok := vars[p.name]
	if !ok || v == nil {
		if p.optional {
			return nil, nil
		}
		return nil, &UndefinedVariableError{Names: []string{p.name}}
	}

	switch msgs := v.(type) {
	case []llm.Message:
		return append([]llm.Message(nil), msgs...), nil
	case llm.Message:
		return []llm.Message{msgs}, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrPlaceholderType, p.name, v)
	}
}

func newMessage(role llm.Role, text string) llm.Message {
	switch role {
	case llm.RoleSystem:
		return llm.System(text)
	case llm.RoleAssistant:
		return llm.AI(text)
	default:
		return llm.Human(text)
	}
}
