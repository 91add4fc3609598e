// Package auth turns a bearer token into a Principal.
package auth

import (
	"context"
	"errors"
	"strings"

	"docvoice/internal/apperr"
	"docvoice/internal/model"
)

var (
	// ErrTokenInvalid is returned for any verification failure other than expiry.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when the token is past its exp claim.
	ErrTokenExpired = errors.New("token expired")
)

const premiumRole = "premium"

// Claims is the subset of identity token claims the service reads.
type Claims struct {
	ObjectID          string   `json:"oid,omitempty"`
	Subject           string   `json:"sub,omitempty"`
	Email             string   `json:"email,omitempty"`
	Name              string   `json:"name,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Roles             []string `json:"roles,omitempty"`
}

// Verifier checks a raw token against the expected issuer and audience.
type Verifier interface {
	Verify(ctx context.Context, token, issuer, audience string) (Claims, error)
}

// Resolver authenticates an Authorization header value.
type Resolver struct {
	verifier Verifier
	issuer   string
	audience string
}

// NewResolver builds a Resolver for one issuer/audience pair.
func NewResolver(v Verifier, issuer, audience string) *Resolver {
	return &Resolver{verifier: v, issuer: issuer, audience: audience}
}

// Resolve verifies the bearer token carried by header and derives the caller.
func (r *Resolver) Resolve(ctx context.Context, header string) (model.Principal, error) {
	if strings.TrimSpace(header) == "" {
		return model.Principal{}, apperr.New(apperr.NoToken, "no token provided")
	}
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return model.Principal{}, apperr.New(apperr.MalformedToken, "invalid token format")
	}

	claims, err := r.verifier.Verify(ctx, parts[1], r.issuer, r.audience)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return model.Principal{}, apperr.Wrap(err, apperr.TokenExpired, "token expired")
		}
		return model.Principal{}, apperr.Wrap(err, apperr.TokenInvalid, "invalid token")
	}
	return PrincipalFrom(claims), nil
}

// PrincipalFrom projects verified claims onto a Principal.
func PrincipalFrom(c Claims) model.Principal {
	id := c.ObjectID
	if id == "" {
		id = c.Subject
	}
	tier := model.TierFree
	for _, r := range c.Roles {
		if strings.EqualFold(r, premiumRole) {
			tier = model.TierPremium
			break
		}
	}
	email := c.Email
	if email == "" && strings.Contains(c.PreferredUsername, "@") {
		email = c.PreferredUsername
	}
	return model.Principal{ID: id, Email: email, Name: c.Name, Tier: tier}
}
