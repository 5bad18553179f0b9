package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/sheet"
)

// Category represents the type of error.
type Category string

const (
	CategoryEngine Category = "engine"
	CategorySheet  Category = "sheet"
	CategoryConfig Category = "config"
	CategoryStore  Category = "store"
	CategoryCLI    Category = "cli"
)

// Location points at a position inside an entry's raw text.
type Location struct {
	// Entry is the sheet entry name.
	Entry string `json:"entry"`

	// Source is the entry's raw text.
	Source string `json:"source,omitempty"`

	// Column is 1-based; 0 means unknown.
	Column int `json:"column,omitempty"`
}

// String returns the location as "entry:column".
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d", l.Entry, l.Column)
	}
	return l.Entry
}

// Error is a structured error with a code, location and suggestions.
type Error struct {
	// Code is a unique error identifier (e.g., "E102").
	Code string

	// Category is the error type (engine, sheet, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the entry text where the error occurred.
	Location *Location

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example shows the correct approach.
	Example string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation points the error at column of an entry's raw text.
func (e *Error) WithLocation(entry, source string, column int) *Error {
	e.Location = &Location{Entry: entry, Source: source, Column: column}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithExample adds an example to the error.
func (e *Error) WithExample(ex string) *Error {
	e.Example = ex
	return e
}

// WithDetail replaces the detailed explanation.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err in an Error. Known engine and sheet failures get
// their own code; anything else gets fallback.
func FromError(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(Classify(err, fallback)).Wrap(err)
}

// Classify returns the registry code for err, or fallback when err is not a
// recognized failure.
func Classify(err error, fallback string) string {
	if code := reactive.CodeOf(err); code != "" {
		return code
	}
	var pe *sheet.ParseError
	switch {
	case stderrors.As(err, &pe):
		return "E122"
	case stderrors.Is(err, sheet.ErrInvalidName):
		return "E120"
	case stderrors.Is(err, sheet.ErrNotFound):
		return "E121"
	default:
		return fallback
	}
}

// FromParseError builds a located E122 error for entry's raw text.
func FromParseError(entry, raw string, err error) *Error {
	e := New("E122").Wrap(err)
	var pe *sheet.ParseError
	if stderrors.As(err, &pe) {
		// Pos is relative to the text after "=".
		col := pe.Pos + 2
		if i := indexFormula(raw); i >= 0 {
			col += i
		}
		e.WithLocation(entry, raw, col)
		e.Detail = pe.Msg
	}
	return e
}

// indexFormula returns the byte offset of the leading "=" in raw.
func indexFormula(raw string) int {
	for i, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '=':
			return i
		}
		return -1
	}
	return -1
}
