package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// Error describes a failed remote operation.
type Error struct {
	Op         string // e.g. "update todo 3"
	StatusCode int    // zero when no response was received
	Message    string // server-supplied message, if any
	Err        error  // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Kind returns the sentinel this error classifies as.
func (e *Error) Kind() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusBadRequest:
		return types.ErrInvalidData
	default:
		return types.ErrTransport
	}
}

// Unwrap exposes both the classification and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind()}
	}
	return []error{e.Kind(), e.Err}
}

// serverMessage pulls the human-readable text out of an error body.
func serverMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
