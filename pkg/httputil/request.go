package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/taskapi/pkg/apierrors"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured
const DefaultMaxBodyBytes int64 = 1 << 20

// ErrInvalidBody is the message for malformed JSON bodies
const ErrInvalidBody = "Invalid request body"

// ReadBody reads the whole request body. An empty body is returned as "{}"
// so optional-field payloads decode cleanly.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apierrors.Validation("Request body too large")
		}
		return nil, apierrors.Wrap(apierrors.KindValidation, ErrInvalidBody, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("{}"), nil
	}
	return data, nil
}

// ParseJSON decodes the request body into dest. Malformed JSON and type
// mismatches are validation errors.
func ParseJSON(r *http.Request, dest interface{}) error {
	data, err := ReadBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return apierrors.Wrap(apierrors.KindValidation, ErrInvalidBody, err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes the error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteAPIError(w, r, err)
		return false
	}
	return true
}

// PathVar extracts a required path parameter
func PathVar(r *http.Request, key string) (string, error) {
	val := strings.TrimSpace(mux.Vars(r)[key])
	if val == "" {
		return "", apierrors.Validation(fmt.Sprintf("Missing path parameter: %s", key))
	}
	return val, nil
}

// QueryString extracts a trimmed query parameter or defaultVal when absent
func QueryString(r *http.Request, key, defaultVal string) string {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return defaultVal
	}
	return val
}
