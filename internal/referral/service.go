// Package referral issues, resolves and redeems per-user referral tokens.
// Issued tokens live only in the cache store under PrefixToken.
package referral

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/referrals/cache"
	"github.com/briangreenhill/referrals/internal/auth"
	"github.com/briangreenhill/referrals/internal/db"
	"github.com/briangreenhill/referrals/internal/http/middleware"
	"github.com/briangreenhill/referrals/internal/http/respond"
)

// Repository is the user store the service reads from.
type Repository interface {
	GetUser(ctx context.Context, id uuid.UUID) (db.User, error)
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	ListReferralsByReferrer(ctx context.Context, idReferrer uuid.UUID) ([]db.User, error)
	CreateReferral(ctx context.Context, arg db.CreateReferralParams) (db.Refer, error)
}

// Issuer signs and verifies tokens.
type Issuer interface {
	Sign(subject, kind string, ttl time.Duration) (string, error)
	Verify(token string) (*auth.Claims, error)
}

type Service struct {
	Repo   Repository
	Store  cache.Store
	Tokens Issuer
	// TokenTTL is the lifetime of an issued referral token.
	TokenTTL time.Duration
}

func notFoundToken() error {
	return respond.NewError(http.StatusNotFound, ErrTypeInvalidToken, ErrMsgNoToken)
}

// Issue signs a fresh referral token for the subject placed in the request
// context. Storing it is left to the singleton cache.
func (s *Service) Issue(r *http.Request) (TokenReferral, error) {
	subject, ok := middleware.SubjectFrom(r.Context())
	if !ok {
		return TokenReferral{}, errors.Wrap(middleware.ErrInvalidSubject, "no subject in context")
	}
	tok, err := s.Tokens.Sign(subject, auth.TypeReferral, s.TokenTTL)
	if err != nil {
		return TokenReferral{}, errors.Wrap(err, "sign referral token")
	}
	return TokenReferral{ReferralToken: tok}, nil
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		return uuid.Nil, respond.NewError(http.StatusUnprocessableEntity, ErrTypeInvalidID, ErrMsgBadID)
	}
	return id, nil
}

// UserIDSubject keys lookups by the canonical form of ?user_id=, so every
// spelling uuid.Parse accepts shares the entry Redeem purges.
func UserIDSubject(r *http.Request) (string, error) {
	id, err := parseUserID(r)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ReferralsByUserID lists the users referred by ?user_id=.
func (s *Service) ReferralsByUserID(r *http.Request) (UserReferrals, error) {
	id, err := parseUserID(r)
	if err != nil {
		return UserReferrals{}, err
	}
	ctx := r.Context()

	referred, err := s.Repo.ListReferralsByReferrer(ctx, id)
	if err != nil {
		return UserReferrals{}, errors.Wrapf(err, "list referrals of %s", id)
	}
	if len(referred) == 0 {
		return UserReferrals{}, respond.NewError(http.StatusNotFound, ErrTypeNotFound, ErrMsgNoReferrals)
	}
	referrer, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return UserReferrals{}, errors.Wrapf(err, "get user %s", id)
	}

	out := UserReferrals{ID: referrer.ID.String(), Name: referrer.Name, Referrals: make([]User, 0, len(referred))}
	for _, u := range referred {
		out.Referrals = append(out.Referrals, User{ID: u.ID.String(), Name: u.Name})
	}
	return out, nil
}

// TokenByEmail returns the live referral token of the user registered with
// ?email=. It reads the singleton entry directly, so a deleted token is never
// served.
func (s *Service) TokenByEmail(r *http.Request) (TokenReferral, error) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		return TokenReferral{}, respond.NewError(http.StatusUnprocessableEntity, ErrTypeInvalidID, "Email is required.")
	}
	ctx := r.Context()

	u, err := s.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenReferral{}, respond.NewError(http.StatusNotFound, ErrTypeNotFound, ErrMsgNoToken)
	}
	if err != nil {
		return TokenReferral{}, errors.Wrap(err, "get user by email")
	}

	tok, ok, err := s.current(ctx, u.ID.String())
	if err != nil {
		return TokenReferral{}, err
	}
	if !ok {
		return TokenReferral{}, respond.NewError(http.StatusBadRequest, ErrTypeInvalidToken, ErrMsgNoToken)
	}
	return tok, nil
}

// Check validates ?token= and returns its owner. The token must be the one
// currently stored for the owner; earlier issuances are no longer valid.
func (s *Service) Check(r *http.Request) (Owner, error) {
	owner, err := s.ownerOf(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		return Owner{}, err
	}
	return Owner{ID: owner}, nil
}

// Redeem records the caller as referred by the owner of ?token= and drops
// the owner's cached referral list. A user has at most one referrer; a second
// redemption is a conflict.
func (s *Service) Redeem(r *http.Request) (respond.Status, error) {
	ctx := r.Context()
	subject, ok := middleware.SubjectFrom(ctx)
	if !ok {
		return respond.Status{}, errors.Wrap(middleware.ErrInvalidSubject, "no subject in context")
	}
	owner, err := s.ownerOf(ctx, r.URL.Query().Get("token"))
	if err != nil {
		return respond.Status{}, err
	}
	if owner == subject {
		return respond.Status{}, respond.NewError(http.StatusBadRequest, ErrTypeInvalidToken, ErrMsgSelfReferral)
	}

	referrer, err := uuid.Parse(owner)
	if err != nil {
		return respond.Status{}, notFoundToken()
	}
	referred, err := uuid.Parse(subject)
	if err != nil {
		return respond.Status{}, respond.NewError(http.StatusUnprocessableEntity, ErrTypeInvalidID, ErrMsgBadID)
	}
	// the owner must not be someone the caller referred
	mine, err := s.Repo.ListReferralsByReferrer(ctx, referred)
	if err != nil {
		return respond.Status{}, errors.Wrapf(err, "list referrals of %s", referred)
	}
	for _, u := range mine {
		if u.ID == referrer {
			return respond.Status{}, respond.NewError(http.StatusConflict, ErrTypeConflict, ErrMsgReferred)
		}
	}

	_, err = s.Repo.CreateReferral(ctx, db.CreateReferralParams{IDReferrer: referrer, IDReferred: referred})
	if errors.Is(err, pgx.ErrNoRows) {
		return respond.Status{}, respond.NewError(http.StatusConflict, ErrTypeConflict, ErrMsgReferred)
	}
	if err != nil {
		return respond.Status{}, errors.Wrap(err, "create referral")
	}

	// the row is committed; a failed purge only leaves the lookup stale until it expires
	if err := s.Store.Delete(ctx, cache.BuildKey(PrefixLookup, owner)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("referrer", owner).Msg("purge cached referrals")
	}
	return respond.Status{Result: true}, nil
}

func (s *Service) ownerOf(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", notFoundToken()
	}
	claims, err := s.Tokens.Verify(token)
	if err != nil || claims.Type != auth.TypeReferral || claims.Subject == "" {
		return "", notFoundToken()
	}
	cur, ok, err := s.current(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if !ok || cur.ReferralToken != token {
		return "", notFoundToken()
	}
	return claims.Subject, nil
}

func (s *Service) current(ctx context.Context, owner string) (TokenReferral, bool, error) {
	raw, ok, err := s.Store.Get(ctx, cache.BuildKey(PrefixToken, owner))
	if err != nil || !ok {
		return TokenReferral{}, false, err
	}
	tok, err := cache.Decode[TokenReferral](raw)
	if err != nil {
		return TokenReferral{}, false, err
	}
	return tok, true, nil
}
