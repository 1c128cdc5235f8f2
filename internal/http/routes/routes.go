package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/referrals/cache"
	"github.com/briangreenhill/referrals/internal/http/cachemw"
	appmw "github.com/briangreenhill/referrals/internal/http/middleware"
	"github.com/briangreenhill/referrals/internal/http/respond"
	"github.com/briangreenhill/referrals/internal/referral"
)

// Pinger reports whether the cache store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Router   *chi.Mux
	Store    cache.Store
	Referral *referral.Service
	Subjects appmw.SubjectExtractor
}

type ServerOptions struct {
	Logger    zerolog.Logger
	Store     cache.Store
	Ping      Pinger
	Referral  *referral.Service
	Verifier  appmw.Verifier
	TokenTTL  time.Duration
	LookupTTL time.Duration
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:   r,
		Store:    opts.Store,
		Referral: opts.Referral,
		Subjects: appmw.SubjectExtractor{Verifier: opts.Verifier},
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("write health check response")
		}
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ping != nil {
			if err := opts.Ping.Ping(r.Context()); err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("store not ready")
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("write ready response")
		}
	})

	issue := cachemw.Singleton(s.Store, cachemw.Policy{
		Prefix:  referral.PrefixToken,
		TTL:     opts.TokenTTL,
		Subject: s.Subjects.Extract,
		Status:  http.StatusCreated,
	}, s.Referral.Issue)

	byUser := cachemw.ReadThrough(s.Store, cachemw.Policy{
		Prefix:  referral.PrefixLookup,
		TTL:     opts.LookupTTL,
		Subject: referral.UserIDSubject,
	}, s.Referral.ReferralsByUserID)

	r.Route("/api/user/referral", func(ar chi.Router) {
		ar.Method(http.MethodPost, "/", issue)
		ar.Method(http.MethodDelete, "/", issue)
		ar.Method(http.MethodGet, "/", byUser)
		ar.Get("/email", handle(http.StatusOK, s.Referral.TokenByEmail))
		ar.Get("/check", handle(http.StatusOK, s.Referral.Check))
		ar.With(s.Subjects.Require).Post("/redeem", handle(http.StatusCreated, s.Referral.Redeem))
	})

	return s
}

// handle serves a typed handler without caching.
func handle[T any](status int, h cachemw.Handler[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, r, status, res)
	}
}
