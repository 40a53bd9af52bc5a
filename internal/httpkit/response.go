// Package httpkit holds the wire helpers shared by the coordinator's
// handlers and its HTTP clients.
package httpkit

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// maxErrorBody bounds how much of an error response ReadErr consumes.
const maxErrorBody = 64 << 10

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorEnvelope is the body of every non-2xx JSON response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	WriteJSON(w, status, ErrorEnvelope{Error: ErrorBody{
		Code:    code,
		Message: msg,
		Details: details,
	}})
}

// WriteBlob sends b as an opaque octet stream.
func WriteBlob(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// ReadErr decodes an error envelope. ok is false when r does not hold one,
// e.g. a proxy's plain-text error page.
func ReadErr(r io.Reader) (body ErrorBody, ok bool) {
	var env ErrorEnvelope
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&env); err != nil {
		return ErrorBody{}, false
	}
	if env.Error.Code == "" {
		return ErrorBody{}, false
	}
	return env.Error, true
}
