// Package cachemw wraps typed handlers with store-backed caching: a
// read-through cache for GET with conditional (ETag) responses, and a
// per-user singleton cache that is the only home of the values it holds.
package cachemw

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	HeaderCacheControl = "Cache-Control"
	HeaderETag         = "ETag"
	HeaderXCache       = "X-Cache"
	HeaderIfNoneMatch  = "If-None-Match"

	Hit  = "HIT"
	Miss = "MISS"
)

// WeakValidator returns a weak ETag for a serialized payload. Identical
// input always yields the identical validator.
func WeakValidator(serialized string) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64String(serialized))
}

// ApplyHeaders sets Cache-Control, ETag and X-Cache for a cached payload.
// max-age is ttl in whole seconds.
func ApplyHeaders(h http.Header, ttl time.Duration, serialized string, hit bool) {
	h.Set(HeaderCacheControl, "max-age="+strconv.FormatInt(int64(ttl/time.Second), 10))
	h.Set(HeaderETag, WeakValidator(serialized))
	if hit {
		h.Set(HeaderXCache, Hit)
	} else {
		h.Set(HeaderXCache, Miss)
	}
}

// ValidatorMatches compares the client's If-None-Match value with the
// validator of the current payload by exact string equality.
func ValidatorMatches(inbound, current string) bool {
	return inbound != "" && inbound == current
}
