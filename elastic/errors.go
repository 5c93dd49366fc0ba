package elastic

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrConflict is returned when a create-only or sequence number
	// precondition of a write was not met.
	ErrConflict = errors.New("version conflict")
	// ErrNotFound is returned when the addressed document or index is absent.
	ErrNotFound = errors.New("not found")
)

// StatusError is an error response of the store. It matches ErrConflict and
// ErrNotFound through errors.Is.
type StatusError struct {
	Status int
	Type   string
	Reason string
}

func (e *StatusError) Error() string {
	if e.Type == "" && e.Reason == "" {
		return fmt.Sprintf("elasticsearch: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("elasticsearch: %d [%s] %s", e.Status, e.Type, e.Reason)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

type errorResponse struct {
	Error  errorDetails `json:"error"`
	Status int          `json:"status"`
}

// errorDetails accepts both the object and the plain string form of the
// "error" field.
type errorDetails struct {
	Type   string
	Reason string
}

func (e *errorDetails) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return JSON.Unmarshal(data, &e.Reason)
	}
	var obj struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := JSON.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Type, e.Reason = obj.Type, obj.Reason
	return nil
}

// NewStatusError builds a StatusError from an HTTP status and the response
// body of a failed REST call. The body may be empty, as for HEAD requests.
func NewStatusError(status int, body io.Reader) error {
	se := &StatusError{Status: status}
	if body == nil {
		return se
	}

	data, err := io.ReadAll(body)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return se
	}

	var resp errorResponse
	if err := JSON.Unmarshal(data, &resp); err != nil {
		se.Reason = strings.TrimSpace(string(data))
		return se
	}
	se.Type = resp.Error.Type
	se.Reason = resp.Error.Reason
	return se
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
