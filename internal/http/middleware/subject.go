package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/briangreenhill/referrals/internal/auth"
	"github.com/briangreenhill/referrals/internal/http/respond"
)

type contextKey string

const SubjectKey contextKey = "subject_id"

// ErrInvalidSubject is returned when the bearer token is missing, malformed,
// unverifiable or not an access token.
var ErrInvalidSubject = errors.Wrap(respond.ErrUnauthorized, "invalid subject")

// Verifier decodes a bearer token into its claims.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SubjectExtractor recovers the acting user's id from the Authorization header.
type SubjectExtractor struct {
	Verifier Verifier
}

// Extract returns the subject of a valid access token.
func (e SubjectExtractor) Extract(r *http.Request) (string, error) {
	token, ok := bearerToken(r)
	if !ok {
		return "", errors.Wrap(ErrInvalidSubject, "missing bearer token")
	}
	claims, err := e.Verifier.Verify(token)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidSubject, "verify bearer token: %v", err)
	}
	if claims.Type != auth.TypeAccess {
		return "", errors.Wrapf(ErrInvalidSubject, "token kind %q", claims.Type)
	}
	if claims.Subject == "" {
		return "", errors.Wrap(ErrInvalidSubject, "empty subject")
	}
	return claims.Subject, nil
}

// Require rejects requests without a valid access token and stores the
// subject for the next handler.
func (e SubjectExtractor) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := e.Extract(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithSubject stores the extracted subject id for the wrapped handler.
func WithSubject(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SubjectKey, id)
}

// SubjectFrom returns the subject id stored by WithSubject.
func SubjectFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SubjectKey).(string)
	return id, ok && id != ""
}
