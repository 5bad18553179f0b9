package server

import "github.com/vango-dev/reactive/pkg/sheet"

// ValueJSON is the wire form of a sheet value.
type ValueJSON struct {
	Kind    string   `json:"kind"`
	Display string   `json:"display"`
	Number  *float64 `json:"number,omitempty"`
	Code    string   `json:"code,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

func encodeValue(v sheet.Value) ValueJSON {
	out := ValueJSON{
		Kind:    v.Kind.String(),
		Display: v.String(),
	}
	switch v.Kind {
	case sheet.KindNumber:
		n := v.Num
		out.Number = &n
	case sheet.KindError:
		out.Code = v.Code
		out.Detail = v.Detail
	}
	return out
}

// CellJSON describes one entry in HTTP responses.
type CellJSON struct {
	Name  string    `json:"name"`
	Raw   string    `json:"raw"`
	Value ValueJSON `json:"value"`

	// Error reports a propagation failure caused by the last write, such
	// as a circular reference. The write itself is kept.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// putRequest is the body of PUT /cells/{name}.
type putRequest struct {
	Raw string `json:"raw"`
}

// errorResponse is the body of failed HTTP requests.
type errorResponse struct {
	Error string `json:"error"`
}

// Messages pushed to WebSocket clients.
const (
	msgUpdate = "update"
	msgError  = "error"
)

// UpdateMessage announces a changed, created or removed entry.
type UpdateMessage struct {
	Type    string    `json:"type"`
	Name    string    `json:"name"`
	Value   ValueJSON `json:"value"`
	Removed bool      `json:"removed,omitempty"`
}

// ErrorMessage reports a failed client command to that client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Op      string `json:"op,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Commands accepted from WebSocket clients.
const (
	opSet    = "set"
	opRemove = "remove"
)

// Command is a client request received over the WebSocket.
type Command struct {
	Op   string `json:"op"`
	Name string `json:"name"`
	Raw  string `json:"raw,omitempty"`
}
