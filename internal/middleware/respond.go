package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	apierrors "github.com/relaystack/configrelay/internal/errors"
)

// errorBody is the wire shape of every gate rejection.
type errorBody struct {
	Error      apierrors.ErrorCode `json:"error"`
	Message    string              `json:"message"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
	Timestamp  string              `json:"timestamp"`
}

// writeAPIError writes the structured JSON rejection for a gate failure.
func writeAPIError(w http.ResponseWriter, apiErr *apierrors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode())
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:      apiErr.Code,
		Message:    apiErr.Message,
		RetryAfter: apiErr.RetryAfter,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
