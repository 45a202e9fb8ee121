package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/dialkeeper/internal/common"
)

var (
	ErrUnavailable  = common.ErrorUnavailable
	ErrUnauthorized = common.ErrorUnauthorized
	ErrBadPayload   = common.ErrorIncorrectPayload
)

// StatusError is returned for non-2xx responses. Message carries the error
// text of the body when the API supplied one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.Status)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return nil
	}
}

// errorMessage extracts the error text from bodies shaped either
// {"error": "text"} or {"error": {"message": "text"}}.
func errorMessage(data json.RawMessage) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Error) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(body.Error, &text); err == nil {
		return text
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &obj); err == nil {
		return obj.Message
	}
	return ""
}

func statusError(resp *Response) error {
	return &StatusError{Status: resp.Status, Message: errorMessage(resp.Data)}
}

// IsStatusError is a shorthand for errors.As with *StatusError.
func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
