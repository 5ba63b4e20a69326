package llm

import (
	"fmt"
	"io"
	"strings"
)

// titleWidth is the width of the message header rule.
const titleWidth = 80

// Title returns the display title for the message role.
func (m Message) Title() string {
	switch m.Role {
	case RoleSystem:
		return "System Message"
	case RoleAssistant:
		return "Ai Message"
	case RoleTool:
		return "Tool Message"
	default:
		return "Human Message"
	}
}

// TitleRule centers title in a line of '=' characters, titleWidth wide.
func TitleRule(title string) string {
	padded := " " + title + " "
	sepLen := max(0, (titleWidth-len(padded))/2)
	sep := strings.Repeat("=", sepLen)
	second := sep
	if len(padded)%2 == 1 {
		second += "="
	}
	return sep + padded + second
}

// Pretty renders the message as a header rule, optional name line, a blank
// line, and the content.
func (m Message) Pretty() string {
	var b strings.Builder
	b.WriteString(TitleRule(m.Title()))
	if m.Name != "" {
		b.WriteString("\nName: ")
		b.WriteString(m.Name)
	}
	b.WriteString("\n\n")
	b.WriteString(m.Content)
	return b.String()
}

// PrettyPrint writes m.Pretty() followed by a newline to w.
func PrettyPrint(w io.Writer, m Message) error {
	_, err := fmt.Fprintln(w, m.Pretty())
	return err
}
