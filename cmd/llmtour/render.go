package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/randalmurphal/llmtour/pkg/llm"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// separator is printed between independent answers.
var separator = strings.Repeat("*", 40)

// printMessage writes m the way a chat transcript shows it: a header rule
// naming the role, then the content.
func (a *app) printMessage(m llm.Message) error {
	if _, err := fmt.Fprintln(a.out, headerStyle.Render(llm.TitleRule(m.Title()))); err != nil {
		return err
	}
	if m.Name != "" {
		if _, err := fmt.Fprintf(a.out, "Name: %s\n", m.Name); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(a.out, "\n%s\n", a.render(m.Content))
	return err
}

// printAnswer writes a bare answer.
func (a *app) printAnswer(text string) error {
	_, err := fmt.Fprintln(a.out, a.render(text))
	return err
}

func (a *app) printSeparator() {
	fmt.Fprintln(a.out, ruleStyle.Render(separator))
}

// render returns text as terminal markdown when --markdown is set. A
// rendering failure falls back to the plain text.
func (a *app) render(text string) string {
	if !a.markdown {
		return text
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		a.logger.Debug("markdown renderer unavailable", "error", err)
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		a.logger.Debug("markdown rendering failed", "error", err)
		return text
	}
	return strings.TrimRight(out, "\n")
}

// streamTo copies chunks to w, writing sep after each piece of content.
// It returns the accumulated text.
func streamTo(w io.Writer, chunks <-chan llm.StreamChunk, sep string) (string, error) {
	var b strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return b.String(), chunk.Error
		}
		if chunk.Content != "" {
			b.WriteString(chunk.Content)
			if _, err := fmt.Fprint(w, chunk.Content+sep); err != nil {
				return b.String(), err
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return b.String(), err
}
