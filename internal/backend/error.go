package backend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/pasta-storefront/internal/domain/auth"
)

// Error is a non-2xx response from the backend. It unwraps to the domain
// sentinel matching its status (auth.ErrUnauthenticated for 401,
// auth.ErrForbidden for 403, an operation-specific not-found error for 404).
type Error struct {
	Method     string
	Path       string
	StatusCode int
	// Messages holds the backend-provided messages, if any.
	Messages []string

	cause error
}

func (e *Error) Error() string {
	msg := http.StatusText(e.StatusCode)
	if len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Message returns the first backend-provided message, or "".
func (e *Error) Message() string {
	if len(e.Messages) == 0 {
		return ""
	}
	return e.Messages[0]
}

// IsValidation reports whether the backend rejected the payload.
func (e *Error) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
}

func newError(method, path string, status int, body []byte, notFound error) *Error {
	e := &Error{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Messages:   parseMessages(body),
	}
	switch status {
	case http.StatusUnauthorized:
		e.cause = auth.ErrUnauthenticated
	case http.StatusForbidden:
		e.cause = auth.ErrForbidden
	case http.StatusNotFound:
		e.cause = notFound
	}
	return e
}

// parseMessages extracts human-readable messages from an error body. The
// backend answers either {"message": "..."} or, for validation failures,
// {"message": ["...", "..."]}; "error" is used when "message" is absent.
// Non-JSON bodies yield nothing.
func parseMessages(body []byte) []string {
	if len(body) == 0 {
		return nil
	}

	var (
		messages []string
		fallback string
	)
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return nil
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "message":
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				messages = append(messages, s)
				return nil
			case jx.Array:
				return d.Arr(func(d *jx.Decoder) error {
					if d.Next() != jx.String {
						return d.Skip()
					}
					s, err := d.Str()
					if err != nil {
						return err
					}
					messages = append(messages, s)
					return nil
				})
			default:
				return d.Skip()
			}
		case "error":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			fallback = s
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil
	}

	if len(messages) == 0 && fallback != "" {
		messages = append(messages, fallback)
	}
	return messages
}
