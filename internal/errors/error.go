package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryStartup Category = "startup"
	CategoryRequest Category = "request"
	CategoryCLI     Category = "cli"
)

// Location is a line inside a descriptor or data file.
type Location struct {
	File string
	Line int
}

// String returns the location as file:line.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// CodedError is a structured error with a registered code and a hint.
type CodedError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location points into the file that caused the error, if known.
	Location *Location

	// Context holds the lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Wrapped
}

// WithLocation points the error at a line of file.
func (e *CodedError) WithLocation(file string, line int) *CodedError {
	e.Location = &Location{File: file, Line: line}
	e.Context = readContextLines(file, line, 3)
	return e
}

// yamlLine matches the line prefix yaml.v3 puts in parse errors.
var yamlLine = regexp.MustCompile(`line (\d+):`)

// WithLocationFromError extracts the line from a YAML parse error of file.
func (e *CodedError) WithLocationFromError(file string, err error) *CodedError {
	if err == nil {
		return e
	}
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return e
	}
	line, convErr := strconv.Atoi(m[1])
	if convErr != nil || line <= 0 {
		return e
	}
	return e.WithLocation(file, line)
}

// WithSuggestion adds a fix suggestion to the error.
func (e *CodedError) WithSuggestion(s string) *CodedError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *CodedError) WithDetail(d string) *CodedError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *CodedError) Wrap(err error) *CodedError {
	e.Wrapped = err
	return e
}

// readContextLines reads contextSize lines centred on targetLine.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a CodedError from a registered error code.
func New(code string) *CodedError {
	template, ok := registry[code]
	if !ok {
		return &CodedError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &CodedError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new CodedError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *CodedError {
	return &CodedError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err in a CodedError with code, unless it already carries
// one somewhere in its chain.
func FromError(err error, code string) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if stderrors.As(err, &ce) {
		return ce
	}
	return New(code).Wrap(err)
}
