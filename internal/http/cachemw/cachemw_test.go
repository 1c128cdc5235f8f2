package cachemw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/referrals/cache"
	"github.com/briangreenhill/referrals/internal/http/middleware"
	"github.com/briangreenhill/referrals/internal/http/respond"
)

type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type issued struct {
	Token string `json:"token"`
}

func newStore(t *testing.T) (*miniredis.Miniredis, *cache.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cache.WithTimeout(time.Second))
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		r.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func lookupPolicy() Policy {
	return Policy{Prefix: "p", TTL: 10 * time.Second, Subject: Query("user_id")}
}

func TestReadThroughMissThenHit(t *testing.T) {
	mr, store := newStore(t)
	calls := 0
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		calls++
		return profile{ID: r.URL.Query().Get("user_id"), Name: "ann"}, nil
	})

	first := serve(h, http.MethodGet, "/x?user_id=42", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, Miss, first.Header().Get(HeaderXCache))
	assert.Equal(t, "max-age=10", first.Header().Get(HeaderCacheControl))
	assert.JSONEq(t, `{"id":"42","name":"ann"}`, first.Body.String())
	assert.Equal(t, 1, calls)

	stored, err := mr.Get("p:42")
	require.NoError(t, err)
	assert.Equal(t, first.Body.String(), stored)
	assert.Equal(t, 10*time.Second, mr.TTL("p:42"))

	second := serve(h, http.MethodGet, "/x?user_id=42", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, Hit, second.Header().Get(HeaderXCache))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(HeaderETag), second.Header().Get(HeaderETag))
	assert.Equal(t, 1, calls, "hit must not run the handler")

	// a different subject is a different key
	serve(h, http.MethodGet, "/x?user_id=43", nil)
	assert.Equal(t, 2, calls)
}

func TestReadThroughConditional(t *testing.T) {
	mr, store := newStore(t)
	require.NoError(t, mr.Set("p:42", `{"id":"42","name":"ann"}`))
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		t.Fatal("handler must not run on a hit")
		return profile{}, nil
	})
	etag := WeakValidator(`{"id":"42","name":"ann"}`)

	rec := serve(h, http.MethodGet, "/x?user_id=42", http.Header{HeaderIfNoneMatch: {etag}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, etag, rec.Header().Get(HeaderETag))
	assert.Equal(t, Hit, rec.Header().Get(HeaderXCache))

	rec = serve(h, http.MethodGet, "/x?user_id=42", http.Header{HeaderIfNoneMatch: {`W/"0000000000000000"`}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"42","name":"ann"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/x?user_id=42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"42","name":"ann"}`, rec.Body.String())
}

func TestReadThroughConditionalOnMiss(t *testing.T) {
	_, store := newStore(t)
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		return profile{ID: "42", Name: "ann"}, nil
	})
	etag := WeakValidator(`{"id":"42","name":"ann"}`)

	// validators are only honoured on a hit
	rec := serve(h, http.MethodGet, "/x?user_id=42", http.Header{HeaderIfNoneMatch: {etag}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Miss, rec.Header().Get(HeaderXCache))
}

func TestReadThroughPassThrough(t *testing.T) {
	mr, store := newStore(t)
	calls := 0
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		calls++
		return profile{ID: "42", Name: "ann"}, nil
	})

	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodPost, "/x?user_id=42", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(HeaderXCache))
	}
	assert.Equal(t, 2, calls)
	assert.False(t, mr.Exists("p:42"))
}

func TestReadThroughHandlerError(t *testing.T) {
	mr, store := newStore(t)
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		return profile{}, respond.NewError(http.StatusNotFound, "HTTP_404_NOT_FOUND", "No referrals found")
	})

	rec := serve(h, http.MethodGet, "/x?user_id=42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":{"result":false,"error_type":"HTTP_404_NOT_FOUND","error_message":"No referrals found"}}`, rec.Body.String())
	assert.False(t, mr.Exists("p:42"), "failures are not cached")
}

func TestReadThroughStoreDown(t *testing.T) {
	mr, store := newStore(t)
	mr.SetError("ERR store offline")
	calls := 0
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		calls++
		return profile{}, nil
	})

	rec := serve(h, http.MethodGet, "/x?user_id=42", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, calls, "store errors are not treated as a miss")
}

func TestReadThroughDrift(t *testing.T) {
	mr, store := newStore(t)
	require.NoError(t, mr.Set("p:42", `{"id":"42","legacy_name":"ann"}`))
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		t.Fatal("drifted values must not trigger a refetch")
		return profile{}, nil
	})

	rec := serve(h, http.MethodGet, "/x?user_id=42", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderETag))
}

func TestReadThroughHitServesStoredBytes(t *testing.T) {
	mr, store := newStore(t)
	// an older shape without "name" still decodes into profile
	stored := `{"id":"42"}`
	require.NoError(t, mr.Set("p:42", stored))
	h := ReadThrough(store, lookupPolicy(), func(r *http.Request) (profile, error) {
		t.Fatal("handler must not run on a hit")
		return profile{}, nil
	})

	rec := serve(h, http.MethodGet, "/x?user_id=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stored, rec.Body.String())
	assert.Equal(t, WeakValidator(rec.Body.String()), rec.Header().Get(HeaderETag))
}

func TestReadThroughPassThroughIgnoresStatus(t *testing.T) {
	_, store := newStore(t)
	p := lookupPolicy()
	p.Status = http.StatusAccepted
	h := ReadThrough(store, p, func(r *http.Request) (profile, error) {
		return profile{ID: "42"}, nil
	})
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPut, "/x?user_id=42", nil).Code)
	assert.Equal(t, http.StatusAccepted, serve(h, http.MethodGet, "/x?user_id=42", nil).Code)
}

func TestReadThroughGlobalKey(t *testing.T) {
	mr, store := newStore(t)
	h := ReadThrough(store, Policy{Prefix: "all", TTL: time.Minute}, func(r *http.Request) (profile, error) {
		return profile{ID: "1", Name: "x"}, nil
	})
	serve(h, http.MethodGet, "/x", nil)
	assert.True(t, mr.Exists("all"))
}

func subjectFromHeader(r *http.Request) (string, error) {
	id := r.Header.Get("X-Subject")
	if id == "" {
		return "", errors.Wrap(middleware.ErrInvalidSubject, "test")
	}
	return id, nil
}

func singletonPolicy() Policy {
	return Policy{Prefix: "referral_token", TTL: time.Hour, Subject: subjectFromHeader, Status: http.StatusCreated}
}

func TestSingletonLifecycle(t *testing.T) {
	mr, store := newStore(t)
	n := 0
	h := Singleton(store, singletonPolicy(), func(r *http.Request) (issued, error) {
		id, ok := middleware.SubjectFrom(r.Context())
		require.True(t, ok)
		n++
		return issued{Token: id + "-" + string(rune('0'+n))}, nil
	})
	as := http.Header{"X-Subject": {"u1"}}

	rec := serve(h, http.MethodPost, "/ref", as)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"token":"u1-1"}`, rec.Body.String())
	first, err := mr.Get("referral_token:u1")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("referral_token:u1"))

	// latest issuance wins
	rec = serve(h, http.MethodPost, "/ref", as)
	require.Equal(t, http.StatusCreated, rec.Code)
	second, err := mr.Get("referral_token:u1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.JSONEq(t, `{"token":"u1-2"}`, second)

	rec = serve(h, http.MethodDelete, "/ref", as)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":true}`, rec.Body.String())
	assert.False(t, mr.Exists("referral_token:u1"))

	// delete of absent is success
	rec = serve(h, http.MethodDelete, "/ref", as)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, n, "delete never runs the handler")
}

func TestSingletonInvalidSubject(t *testing.T) {
	mr, store := newStore(t)
	h := Singleton(store, singletonPolicy(), func(r *http.Request) (issued, error) {
		t.Fatal("handler must not run without a subject")
		return issued{}, nil
	})

	for _, m := range []string{http.MethodPost, http.MethodDelete} {
		rec := serve(h, m, "/ref", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}
	assert.Empty(t, mr.Keys())
}

func TestSingletonStoreDown(t *testing.T) {
	mr, store := newStore(t)
	mr.SetError("ERR store offline")
	h := Singleton(store, singletonPolicy(), func(r *http.Request) (issued, error) {
		return issued{Token: "t"}, nil
	})
	as := http.Header{"X-Subject": {"u1"}}

	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodPost, "/ref", as).Code)
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodDelete, "/ref", as).Code)
}

func TestSingletonPassThrough(t *testing.T) {
	mr, store := newStore(t)
	h := Singleton(store, singletonPolicy(), func(r *http.Request) (issued, error) {
		return issued{Token: "t"}, nil
	})
	rec := serve(h, http.MethodGet, "/ref", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "Status applies to POST only")
	assert.JSONEq(t, `{"token":"t"}`, rec.Body.String())
	assert.Empty(t, mr.Keys())
}

func TestSingletonSurvivesCancel(t *testing.T) {
	mr, store := newStore(t)
	h := Singleton(store, singletonPolicy(), func(r *http.Request) (issued, error) {
		return issued{Token: "t"}, r.Context().Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := httptest.NewRequest(http.MethodPost, "/ref", nil).WithContext(ctx)
	r.Header.Set("X-Subject", "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, mr.Exists("referral_token:u1"))
}
