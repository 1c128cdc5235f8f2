package auth

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "type" claim.
const (
	TypeAccess   = "access_token"
	TypeRefresh  = "refresh_token"
	TypeReferral = "referral_token"
)

var (
	ErrBadToken   = errors.New("bad token")
	ErrBadSig     = errors.New("invalid signature")
	ErrExpired    = errors.New("expired")
	ErrBadPayload = errors.New("bad payload")
)

// Claims is the payload of every token this service signs.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Config selects the signing algorithm and key material.
// HS256 uses Secret; RS256 uses PEM encoded PrivateKey/PublicKey.
type Config struct {
	Algorithm  string
	Secret     string
	PrivateKey string
	PublicKey  string
}

// Tokens signs and verifies JWTs.
type Tokens struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	now       func() time.Time
}

func NewTokens(cfg Config) (*Tokens, error) {
	t := &Tokens{now: time.Now}
	switch strings.ToUpper(cfg.Algorithm) {
	case "", "HS256":
		if cfg.Secret == "" {
			return nil, errors.New("secret required for HS256")
		}
		t.method = jwt.SigningMethodHS256
		t.signKey = []byte(cfg.Secret)
		t.verifyKey = []byte(cfg.Secret)
	case "RS256":
		t.method = jwt.SigningMethodRS256
		if cfg.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKey))
		if err != nil {
			return nil, errors.Wrap(err, "parse public key")
		}
		t.verifyKey = pub
		// verify-only deployments may omit the private key
		if cfg.PrivateKey != "" {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKey))
			if err != nil {
				return nil, errors.Wrap(err, "parse private key")
			}
			t.signKey = priv
		}
	default:
		return nil, errors.Newf("unsupported signing method: %s", cfg.Algorithm)
	}
	return t, nil
}

// Sign issues a token of the given kind for subject, valid for ttl.
// Every call produces a distinct token (unique jti).
func (t *Tokens) Sign(subject, kind string, ttl time.Duration) (string, error) {
	if t.signKey == nil {
		return "", errors.New("no signing key configured")
	}
	now := t.now()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(t.method, claims).SignedString(t.signKey)
}

// Verify checks signature and expiry and returns the claims.
func (t *Tokens) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrBadToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.verifyKey, nil
	},
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrBadSig
	default:
		return nil, errors.Wrapf(ErrBadToken, "parse: %v", err)
	}

	if claims.Subject == "" || claims.Type == "" {
		return nil, ErrBadPayload
	}
	return &claims, nil
}
