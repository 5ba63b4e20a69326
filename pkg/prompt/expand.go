package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenPattern matches an escaped brace pair or a {name} variable.
// Leftmost matching makes "{{name}}" read as the literal "{name}".
var tokenPattern = regexp.MustCompile(`\{\{|\}\}|\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction determines how undefined variables are handled.
type MissingAction int

const (
	// MissingError returns an *UndefinedVariableError. Default for templates.
	MissingError MissingAction = iota

	// MissingKeep leaves the {name} placeholder in the output.
	MissingKeep

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
)

// String returns the string representation of the MissingAction.
func (a MissingAction) String() string {
	switch a {
	case MissingError:
		return "error"
	case MissingKeep:
		return "keep"
	case MissingEmpty:
		return "empty"
	default:
		return fmt.Sprintf("MissingAction(%d)", a)
	}
}

// Expander substitutes {name} variables in text.
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
}

// Option configures an Expander or a Template.
type Option func(*Expander)

// WithMissingAction sets how undefined variables are handled.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// NewExpander creates an Expander. Default: MissingError.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand substitutes variables in s. "{{" and "}}" produce literal braces.
//
// Example:
//
//	exp := NewExpander()
//	out, err := exp.Expand("Translate the following from English into {language}",
//	    map[string]any{"language": "Dutch"})
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	result := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		switch match {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}

		name := match[1 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}

		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// Variables returns the distinct variable names in s in order of appearance.
func Variables(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
