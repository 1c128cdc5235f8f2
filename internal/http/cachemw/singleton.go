package cachemw

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/referrals/cache"
	"github.com/briangreenhill/referrals/internal/http/middleware"
	"github.com/briangreenhill/referrals/internal/http/respond"
)

// Singleton keeps at most one live value per subject, stored only in the
// cache. POST always runs h and overwrites the subject's entry, so the latest
// issuance wins. DELETE removes the entry and succeeds whether or not it
// existed. Other methods call h directly.
//
// The subject is extracted once per POST/DELETE and handed to h through the
// request context (middleware.SubjectFrom).
func Singleton[T any](store cache.Store, p Policy, h Handler[T]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			passThrough(w, r, h)
			return
		}
		if p.Subject == nil {
			respond.Error(w, r, errors.New("singleton cache requires a subject"))
			return
		}

		subject, err := p.Subject(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		key := cache.BuildKey(p.Prefix, subject)
		log := zerolog.Ctx(r.Context()).With().Str("cache_key", key).Logger()
		ctx := middleware.WithSubject(context.WithoutCancel(r.Context()), subject)

		if r.Method == http.MethodDelete {
			if err := store.Delete(ctx, key); err != nil {
				respond.Error(w, r, err)
				return
			}
			log.Debug().Msg("singleton deleted")
			respond.JSON(w, r, http.StatusOK, respond.Status{Result: true})
			return
		}

		res, err := h(r.WithContext(ctx))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		raw, err := cache.Encode(res)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := store.Set(ctx, key, raw, p.TTL); err != nil {
			respond.Error(w, r, err)
			return
		}
		log.Debug().Dur("ttl", p.TTL).Msg("singleton issued")
		respond.Raw(w, r, p.status(), []byte(raw))
	})
}
