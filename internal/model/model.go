// Package model contains the domain records shared by the pipeline layers.
// Types here carry no persistence or transport behaviour beyond JSON tags.
package model

// Tier is the subscription level of a principal.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Principal is the authenticated caller, derived per request from verified token claims.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Tier  Tier   `json:"tier"`
}

// AccessDecision is the outcome of the access policy for one conversion attempt.
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
