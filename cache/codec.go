package cache

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Encode serializes v to the JSON text kept in the store.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "encode %T", v), ErrSerialization)
	}
	return string(b), nil
}

// Decode parses a stored value into T. Unknown fields are rejected so that a
// value cached under an older shape surfaces as ErrSerialization instead of
// being silently accepted.
func Decode[T any](raw string) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		var zero T
		return zero, errors.Mark(errors.Wrapf(err, "decode %T", zero), ErrSerialization)
	}
	return out, nil
}
