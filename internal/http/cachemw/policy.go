package cachemw

import (
	"net/http"
	"time"
)

// Handler produces the structured result of an operation. Its errors are
// written unchanged by the decorators.
type Handler[T any] func(r *http.Request) (T, error)

// SubjectFunc derives the partition id of a request.
type SubjectFunc func(r *http.Request) (string, error)

// Policy configures one cache use. The result type is the T of the wrapped
// Handler; cached values are decoded back into it.
type Policy struct {
	// Prefix names the logical namespace of the keys.
	Prefix string
	// TTL is the expiry of stored values and the advertised max-age.
	TTL time.Duration
	// Subject partitions keys per request. Nil means one key for the prefix.
	Subject SubjectFunc
	// Status is written on success of the cached operation (GET for
	// ReadThrough, POST for Singleton). Defaults to 200.
	Status int
}

func (p Policy) status() int {
	if p.Status == 0 {
		return http.StatusOK
	}
	return p.Status
}

// Query returns a SubjectFunc that reads a query parameter.
func Query(name string) SubjectFunc {
	return func(r *http.Request) (string, error) {
		return r.URL.Query().Get(name), nil
	}
}
