package cachemw

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/referrals/cache"
	"github.com/briangreenhill/referrals/internal/http/respond"
)

// ReadThrough caches the result of an idempotent GET handler. A miss runs
// the handler and stores its JSON; a hit serves the stored JSON, or 304 when
// If-None-Match equals the stored payload's validator. Store failures fail
// the request rather than bypassing the cache. Other methods call h directly
// without caching.
func ReadThrough[T any](store cache.Store, p Policy, h Handler[T]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			passThrough(w, r, h)
			return
		}

		var subject string
		if p.Subject != nil {
			var err error
			if subject, err = p.Subject(r); err != nil {
				respond.Error(w, r, err)
				return
			}
		}
		key := cache.BuildKey(p.Prefix, subject)
		log := zerolog.Ctx(r.Context()).With().Str("cache_key", key).Logger()

		raw, ok, err := store.Get(r.Context(), key)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		if !ok {
			// the handler and the write outlive a disconnected client
			ctx := context.WithoutCancel(r.Context())
			res, err := h(r.WithContext(ctx))
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			raw, err = cache.Encode(res)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			if err := store.Set(ctx, key, raw, p.TTL); err != nil {
				respond.Error(w, r, err)
				return
			}
			log.Debug().Str("cache", Miss).Msg("stored")
			ApplyHeaders(w.Header(), p.TTL, raw, false)
			respond.Raw(w, r, p.status(), []byte(raw))
			return
		}

		if ValidatorMatches(r.Header.Get(HeaderIfNoneMatch), WeakValidator(raw)) {
			log.Debug().Str("cache", Hit).Msg("not modified")
			ApplyHeaders(w.Header(), p.TTL, raw, true)
			w.WriteHeader(http.StatusNotModified)
			return
		}

		// decoded only to detect drift; the stored bytes are what the ETag covers
		if _, err := cache.Decode[T](raw); err != nil {
			respond.Error(w, r, err)
			return
		}
		log.Debug().Str("cache", Hit).Msg("served")
		ApplyHeaders(w.Header(), p.TTL, raw, true)
		respond.Raw(w, r, p.status(), []byte(raw))
	})
}

// passThrough serves methods a decorator does not cache. Policy.Status is
// not applied; it belongs to the cached operation.
func passThrough[T any](w http.ResponseWriter, r *http.Request, h Handler[T]) {
	res, err := h(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, res)
}
