package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/observability"
)

// Envelope is the top-level JSON object of every API response.
// "success" is always set by the writers below.
type Envelope map[string]interface{}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes {"success": true, ...payload}
func WriteSuccess(w http.ResponseWriter, status int, payload Envelope) {
	body := make(Envelope, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	_ = WriteJSON(w, status, body)
}

// WriteMessage writes a successful response carrying only a message
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteSuccess(w, status, Envelope{"message": message})
}

// WriteErrorMessage writes {"success": false, "message": message}
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, Envelope{"success": false, "message": message})
}

// WriteAPIError maps err to its HTTP status and writes the failure envelope.
// Errors without a kind become a 500 with a generic message; the cause is
// logged with the request-scoped logger and never sent to the client.
func WriteAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := apierrors.Status(err)

	logger := observability.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.WithError(err).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			Error("Request failed")
	} else {
		logger.WithField("status", status).Debugf("Request rejected: %s", message)
	}

	WriteErrorMessage(w, status, message)
}
