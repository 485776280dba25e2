package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

var colorsEnabled = true

// EnableColors enables ANSI color output.
func EnableColors() {
	colorsEnabled = true
}

// DisableColors disables ANSI color output.
func DisableColors() {
	colorsEnabled = false
}

func color(c, s string) string {
	if !colorsEnabled {
		return s
	}
	return c + s + colorReset
}

// Format renders the error for a terminal.
func (e *CodedError) Format() string {
	var sb strings.Builder

	sb.WriteString(color(colorRed+colorBold, "ERROR"))
	if e.Code != "" {
		sb.WriteString(" ")
		sb.WriteString(color(colorBold, e.Code))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if e.Location != nil {
		sb.WriteString("\n  ")
		sb.WriteString(color(colorCyan, e.Location.String()))
		sb.WriteString("\n")

		if len(e.Context) > 0 {
			sb.WriteString("\n")
			first := e.Location.Line - len(e.Context)/2
			for i, line := range e.Context {
				n := first + i
				marker := "    "
				if n == e.Location.Line {
					marker = color(colorRed, "  → ")
				}
				sb.WriteString(marker)
				sb.WriteString(color(colorGray, fmt.Sprintf("%4d │ ", n)))
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}

	if e.Detail != "" {
		sb.WriteString("\n")
		sb.WriteString(wrapText(e.Detail, 72, "  "))
		sb.WriteString("\n")
	}

	if e.Wrapped != nil {
		sb.WriteString("\n  ")
		sb.WriteString(color(colorGray, "Cause: "+e.Wrapped.Error()))
		sb.WriteString("\n")
	}

	if e.Suggestion != "" {
		sb.WriteString("\n  ")
		sb.WriteString(color(colorYellow, "Hint: "))
		sb.WriteString(e.Suggestion)
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatCompact renders the error on one line, for logs.
func (e *CodedError) FormatCompact() string {
	var sb strings.Builder
	if e.Location != nil {
		sb.WriteString(e.Location.String())
		sb.WriteString(": ")
	}
	sb.WriteString(e.Error())
	return sb.String()
}

type jsonError struct {
	Code       string `json:"code,omitempty"`
	Category   string `json:"category,omitempty"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Cause      string `json:"cause,omitempty"`
}

// FormatJSON renders the error as a JSON object.
func (e *CodedError) FormatJSON() ([]byte, error) {
	je := jsonError{
		Code:       e.Code,
		Category:   string(e.Category),
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Location != nil {
		je.File = e.Location.File
		je.Line = e.Location.Line
	}
	if e.Wrapped != nil {
		je.Cause = e.Wrapped.Error()
	}
	return json.Marshal(je)
}

// wrapText wraps text at width, prefixing each line with indent.
func wrapText(text string, width int, indent string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var sb strings.Builder
	lineLen := 0
	sb.WriteString(indent)
	for i, word := range words {
		if i > 0 {
			if lineLen+1+len(word) > width {
				sb.WriteString("\n")
				sb.WriteString(indent)
				lineLen = 0
			} else {
				sb.WriteString(" ")
				lineLen++
			}
		}
		sb.WriteString(word)
		lineLen += len(word)
	}
	return sb.String()
}

// PrintError writes err to w, using the terminal format for coded errors.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var ce *CodedError
	if stderrors.As(err, &ce) {
		fmt.Fprint(w, ce.Format())
		return
	}
	fmt.Fprintf(w, "%s: %s\n", color(colorRed+colorBold, "ERROR"), err.Error())
}
