package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvoice/internal/config"
)

const (
	testIssuer   = "https://login.example.com/tenant/v2.0"
	testAudience = "api://docvoice"
)

type keyServer struct {
	mu    sync.Mutex
	keys  []jose.JSONWebKey
	calls atomic.Int32
	srv   *httptest.Server
}

func newKeyServer(t *testing.T) *keyServer {
	ks := &keyServer{}
	ks.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ks.calls.Add(1)
		ks.mu.Lock()
		defer ks.mu.Unlock()
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: ks.keys})
	}))
	t.Cleanup(ks.srv.Close)
	return ks
}

func (ks *keyServer) publish(kid string, key *rsa.PrivateKey) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys = append(ks.keys, jose.JSONWebKey{Key: &key.PublicKey, KeyID: kid, Algorithm: string(jose.RS256), Use: "sig"})
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

func sign(t *testing.T, kid string, key *rsa.PrivateKey, std jwt.Claims, custom Claims) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: key, KeyID: kid}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	require.NoError(t, err)
	return raw
}

func validClaims(now time.Time) jwt.Claims {
	return jwt.Claims{
		Issuer:   testIssuer,
		Subject:  "sub-1",
		Audience: jwt.Audience{testAudience},
		IssuedAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func newVerifier(url string, now time.Time) *JWKSVerifier {
	v := NewJWKSVerifier(config.IdentityConfig{JWKSURL: url, JWKSRefreshSec: 3600})
	v.now = func() time.Time { return now }
	return v
}

func TestNewJWKSVerifier_DefaultKeysURL(t *testing.T) {
	v := NewJWKSVerifier(config.IdentityConfig{Authority: "https://login.microsoftonline.com/", TenantID: "t1"})
	assert.Equal(t, "https://login.microsoftonline.com/t1/discovery/v2.0/keys", v.url)
	assert.Equal(t, time.Hour, v.refresh)
}

func TestJWKSVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	key := newKey(t)
	ks := newKeyServer(t)
	ks.publish("k1", key)

	t.Run("valid token", func(t *testing.T) {
		v := newVerifier(ks.srv.URL, now)
		raw := sign(t, "k1", key, validClaims(now), Claims{ObjectID: "oid-1", Email: "a@b.c", Roles: []string{"premium"}})

		got, err := v.Verify(ctx, raw, testIssuer, testAudience)
		require.NoError(t, err)
		assert.Equal(t, "oid-1", got.ObjectID)
		assert.Equal(t, "sub-1", got.Subject)
		assert.Equal(t, []string{"premium"}, got.Roles)
	})

	t.Run("keys are cached", func(t *testing.T) {
		v := newVerifier(ks.srv.URL, now)
		raw := sign(t, "k1", key, validClaims(now), Claims{})
		before := ks.calls.Load()
		for i := 0; i < 3; i++ {
			_, err := v.Verify(ctx, raw, testIssuer, testAudience)
			require.NoError(t, err)
		}
		assert.Equal(t, before+1, ks.calls.Load())
	})

	t.Run("expired", func(t *testing.T) {
		v := newVerifier(ks.srv.URL, now)
		c := validClaims(now)
		c.Expiry = jwt.NewNumericDate(now.Add(-time.Hour))
		raw := sign(t, "k1", key, c, Claims{})

		_, err := v.Verify(ctx, raw, testIssuer, testAudience)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong audience", func(t *testing.T) {
		v := newVerifier(ks.srv.URL, now)
		raw := sign(t, "k1", key, validClaims(now), Claims{})

		_, err := v.Verify(ctx, raw, testIssuer, "api://other")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		v := newVerifier(ks.srv.URL, now)
		raw := sign(t, "k1", key, validClaims(now), Claims{})

		_, err := v.Verify(ctx, raw, "https://evil.example.com/v2.0", testAudience)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("signed by unpublished key", func(t *testing.T) {
		v := newVerifier(ks.srv.URL, now)
		raw := sign(t, "k1", newKey(t), validClaims(now), Claims{})

		_, err := v.Verify(ctx, raw, testIssuer, testAudience)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		v := newVerifier(ks.srv.URL, now)
		_, err := v.Verify(ctx, "not-a-jwt", testIssuer, testAudience)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestJWKSVerifier_RefetchOnUnknownKid(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	k1, k2 := newKey(t), newKey(t)
	ks := newKeyServer(t)
	ks.publish("k1", k1)

	v := newVerifier(ks.srv.URL, now)
	_, err := v.Verify(ctx, sign(t, "k1", k1, validClaims(now), Claims{}), testIssuer, testAudience)
	require.NoError(t, err)

	ks.publish("k2", k2)
	rotated := sign(t, "k2", k2, validClaims(now), Claims{})

	_, err = v.Verify(ctx, rotated, testIssuer, testAudience)
	assert.ErrorIs(t, err, ErrTokenInvalid, "refetch is throttled right after a fetch")

	later := now.Add(time.Minute)
	v.now = func() time.Time { return later }
	_, err = v.Verify(ctx, sign(t, "k2", k2, validClaims(later), Claims{}), testIssuer, testAudience)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ks.calls.Load())
}
