package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a multi-part diagnostic shown to the user
//
//	❌ COMPONENT NOT FOUND: /src/components/Buton.tsx
//	   No component is registered at that path.
//
//	   Did you mean: /src/components/Button.tsx?
//
//	   → List components: catalog list
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders the message
func (m Message) Format() string {
	var b strings.Builder

	var attr color.Attribute
	var symbol string
	switch m.Level {
	case LevelWarning:
		attr, symbol = color.FgYellow, "⚠️"
	case LevelInfo:
		attr, symbol = color.FgCyan, "ℹ️"
	default:
		attr, symbol = color.FgRed, "❌"
	}
	head := newColor(m.NoColor, attr, color.Bold)
	body := newColor(m.NoColor, attr)

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Detail != "" {
		body.Fprintf(&b, "   %s\n", m.Detail)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Hints) > 0 {
		b.WriteString("\n")
		cyan := newColor(m.NoColor, color.FgCyan)
		for _, h := range m.Hints {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write writes the formatted message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Success writes a green check line
func Success(w io.Writer, message string, noColor bool) {
	newColor(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", message)
}

// ComponentNotFound describes a lookup miss
func ComponentNotFound(path string, suggestions []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "component not found",
		Problem:     path,
		Detail:      "No component is registered at that path.",
		Suggestions: suggestions,
		Hints: []string{
			"List components: catalog list",
			"Search by name: catalog search <query>",
		},
		NoColor: noColor,
	}
}

// ConfigError describes an invalid configuration
func ConfigError(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: err.Error(),
		Hints: []string{
			"View config: cat catalog.yaml",
			"Create a config: catalog init",
		},
		NoColor: noColor,
	}
}

// ExtractFailures warns about files that could not be extracted
func ExtractFailures(count int, noColor bool) Message {
	return Message{
		Level:   LevelWarning,
		Problem: fmt.Sprintf("%d file(s) could not be extracted", count),
		Detail:  "Their components are missing from the registry.",
		Hints:   []string{"Show details: catalog scan --verbose"},
		NoColor: noColor,
	}
}
