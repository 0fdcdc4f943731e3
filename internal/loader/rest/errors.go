package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Details != "" {
		b.WriteString(" (" + e.Details + ")")
	}
	if e.Hint != "" {
		b.WriteString(" hint: " + e.Hint)
	}
	return b.String()
}

// IsConflict reports whether the request violated a uniqueness constraint.
func (e *APIError) IsConflict() bool {
	return e.Status == http.StatusConflict || e.Code == "23505"
}

// decodeAPIError builds an APIError from a failed response. Bodies that are
// not PostgREST JSON are kept, truncated, as the message.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || (apiErr.Message == "" && apiErr.Code == "") {
		msg := strings.TrimSpace(string(body))
		if len(msg) > pgload.MaxErrorPreviewLength {
			msg = msg[:pgload.MaxErrorPreviewLength] + "..."
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		apiErr.Message = msg
	}
	apiErr.Status = status
	return apiErr
}
