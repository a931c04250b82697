package aiservice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnavailable covers every upstream failure that is not a client-side rejection.
	ErrUnavailable = errors.New("ai service unavailable")
	// ErrStreamClosed is returned by Recv after Close.
	ErrStreamClosed = errors.New("status stream closed")
)

// RejectedError is a 4xx answer from the AI service. Code is passed through verbatim.
type RejectedError struct {
	Status int
	Code   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ai service rejected request: status=%d code=%s", e.Status, e.Code)
}

type errorBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps an upstream status and body to RejectedError or ErrUnavailable.
func classify(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	if eb.Status == 0 {
		eb.Status = status
	}
	if eb.Status >= 400 && eb.Status < 500 {
		code := strings.TrimSpace(eb.Code)
		if code == "" {
			code = strings.ToLower(strings.ReplaceAll(http.StatusText(eb.Status), " ", "_"))
		}
		return &RejectedError{Status: eb.Status, Code: code}
	}
	if eb.Code != "" {
		return fmt.Errorf("%w: status=%d code=%s", ErrUnavailable, eb.Status, eb.Code)
	}
	return fmt.Errorf("%w: status=%d", ErrUnavailable, eb.Status)
}
