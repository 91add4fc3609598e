package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/gofiber/fiber/v2"

	"docvoice/internal/config"
	"docvoice/internal/logger"
)

const (
	defaultLeeway  = time.Minute
	fetchTimeout   = 10 * time.Second
	minRefetchWait = 30 * time.Second
)

// JWKSVerifier verifies RS256 tokens against a cached JSON Web Key Set.
// The set is fetched lazily, refreshed after the configured interval and
// refetched when a token names an unknown kid.
type JWKSVerifier struct {
	url     string
	refresh time.Duration
	leeway  time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	keys    jose.JSONWebKeySet
	fetched time.Time
}

// NewJWKSVerifier builds a verifier for the tenant key set.
func NewJWKSVerifier(cfg config.IdentityConfig) *JWKSVerifier {
	refresh := time.Duration(cfg.JWKSRefreshSec) * time.Second
	if refresh <= 0 {
		refresh = time.Hour
	}
	return &JWKSVerifier{
		url:     cfg.KeysURL(),
		refresh: refresh,
		leeway:  defaultLeeway,
		now:     time.Now,
	}
}

// Verify implements Verifier.
func (v *JWKSVerifier) Verify(ctx context.Context, raw, issuer, audience string) (Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if len(tok.Headers) == 0 || tok.Headers[0].KeyID == "" {
		return Claims{}, fmt.Errorf("%w: missing kid", ErrTokenInvalid)
	}

	key, err := v.key(ctx, tok.Headers[0].KeyID)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	var std jwt.Claims
	var out Claims
	if err := tok.Claims(key.Key, &std, &out); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	err = std.ValidateWithLeeway(jwt.Expected{
		Issuer:      issuer,
		AnyAudience: jwt.Audience{audience},
		Time:        v.now(),
	}, v.leeway)
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err != nil:
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return out, nil
}

func (v *JWKSVerifier) key(ctx context.Context, kid string) (jose.JSONWebKey, error) {
	v.mu.RLock()
	keys := v.keys.Key(kid)
	stale := v.fetched.IsZero() || v.now().Sub(v.fetched) > v.refresh
	recent := !v.fetched.IsZero() && v.now().Sub(v.fetched) < minRefetchWait
	v.mu.RUnlock()

	if len(keys) > 0 && !stale {
		return keys[0], nil
	}
	if len(keys) == 0 && recent {
		return jose.JSONWebKey{}, fmt.Errorf("unknown signing key %q", kid)
	}

	if err := v.fetch(ctx); err != nil {
		if len(keys) > 0 {
			logger.C(ctx).Warn().Err(err).Msg("jwks refresh failed, using cached keys")
			return keys[0], nil
		}
		return jose.JSONWebKey{}, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if keys = v.keys.Key(kid); len(keys) > 0 {
		return keys[0], nil
	}
	return jose.JSONWebKey{}, fmt.Errorf("unknown signing key %q", kid)
}

func (v *JWKSVerifier) fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var set jose.JSONWebKeySet
	code, _, errs := fiber.Get(v.url).Timeout(fetchTimeout).Struct(&set)
	if code != 0 && code != fiber.StatusOK {
		return fmt.Errorf("jwks: status %d", code)
	}
	if len(errs) > 0 {
		return fmt.Errorf("jwks: %w", errs[0])
	}

	v.mu.Lock()
	v.keys = set
	v.fetched = v.now()
	v.mu.Unlock()
	logger.C(ctx).Debug().Int("keys", len(set.Keys)).Str("url", v.url).Msg("jwks refreshed")
	return nil
}
