package sheet

import (
	"math"
	"strconv"
	"strings"
)

// Kind classifies a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindError
)

// String returns the kind name used in JSON payloads.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Error codes carried by error values.
const (
	CodeRef   = "#REF"
	CodeErr   = "#ERR"
	CodeCycle = "#CYCLE"
)

// Value is the evaluated content of an entry. Values are comparable, so an
// entry whose result does not change does not disturb its dependents.
type Value struct {
	Kind Kind
	Num  float64
	Text string

	// Code and Detail are set for KindError.
	Code   string
	Detail string
}

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Text returns a text value.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// errorValue returns an error value with the given code.
func errorValue(code, detail string) Value {
	return Value{Kind: KindError, Code: code, Detail: detail}
}

// Equal reports whether v and o hold the same value. Unlike ==, a NaN
// number equals another NaN, so an entry stuck on NaN settles.
func (v Value) Equal(o Value) bool {
	if v.Kind == KindNumber && o.Kind == KindNumber && math.IsNaN(v.Num) && math.IsNaN(o.Num) {
		return true
	}
	return v == o
}

// IsError reports whether v is an error value.
func (v Value) IsError() bool {
	return v.Kind == KindError
}

// String renders v the way the CLI prints it.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Text
	case KindError:
		return v.Code
	default:
		return ""
	}
}

// literal interprets raw text that is not a formula. Spellings of NaN and
// infinity stay text.
func literal(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(raw)
}
