// Package respond writes JSON bodies and error details for the API.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ErrUnauthorized marks errors that must be answered with 401.
var ErrUnauthorized = errors.New("unauthorized")

// Status is the body of operations that only report success.
type Status struct {
	Result bool `json:"result"`
}

// HTTPError is a handler error that carries its own status and detail.
// It passes through the caching layer unchanged.
type HTTPError struct {
	Status  int
	Type    string
	Message string
}

func (e *HTTPError) Error() string {
	return e.Type + ": " + e.Message
}

func NewError(status int, errType, message string) *HTTPError {
	return &HTTPError{Status: status, Type: errType, Message: message}
}

type detail struct {
	Result       bool   `json:"result"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

type errorBody struct {
	Detail detail `json:"detail"`
}

// JSON encodes v and writes it with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		Error(w, r, errors.Wrapf(err, "encode %T", v))
		return
	}
	Raw(w, r, status, b)
}

// Raw writes an already serialized JSON body.
func Raw(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("write response")
	}
}

// Error translates err into an error detail response. Unknown errors become
// 500 and are logged; their text is never sent to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var he *HTTPError
	switch {
	case errors.As(err, &he):
		writeDetail(w, r, he.Status, he.Type, he.Message)
	case errors.Is(err, ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, r, http.StatusUnauthorized, "Invalid auth.", "Please repeat authentication.")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeDetail(w, r, http.StatusInternalServerError, "Internal server error.", "An error occurred.")
	}
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	b, _ := json.Marshal(errorBody{Detail: detail{ErrorType: errType, ErrorMessage: message}})
	Raw(w, r, status, b)
}
