// Package policy decides whether a principal may start another conversion.
package policy

import (
	"context"
	"fmt"
	"time"

	"docvoice/internal/apperr"
	"docvoice/internal/model"
)

// DailyFreeConversions is the number of conversions a free-tier principal may start per day.
const DailyFreeConversions = 2

// UsageCounter persists per-principal daily conversion counts. ReserveForDay must check
// and increment in one atomic step.
type UsageCounter interface {
	ReserveForDay(ctx context.Context, userID string, day time.Time, limit int) (bool, error)
	ReleaseForDay(ctx context.Context, userID string, day time.Time) error
}

// Decide is the pure access rule.
func Decide(tier model.Tier, usage int) model.AccessDecision {
	if tier == model.TierPremium {
		return model.AccessDecision{Allowed: true}
	}
	if usage < DailyFreeConversions {
		return model.AccessDecision{Allowed: true}
	}
	return model.AccessDecision{
		Allowed: false,
		Reason:  fmt.Sprintf("free tier allows %d conversions per day", DailyFreeConversions),
	}
}

// Day truncates t to the UTC calendar day used as the quota window.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Gate applies Decide against persisted usage.
type Gate struct {
	counter UsageCounter
}

// NewGate constructs a Gate over the given counter.
func NewGate(counter UsageCounter) *Gate {
	return &Gate{counter: counter}
}

// Admit reserves one of the principal's daily conversions, or returns SubscriptionRequired
// when the allowance is exhausted. Premium principals are not counted.
func (g *Gate) Admit(ctx context.Context, p model.Principal, now time.Time) (model.AccessDecision, error) {
	if p.Tier == model.TierPremium {
		return Decide(p.Tier, 0), nil
	}
	ok, err := g.counter.ReserveForDay(ctx, p.ID, Day(now), DailyFreeConversions)
	if err != nil {
		return model.AccessDecision{}, apperr.Wrap(err, apperr.InternalError, "failed to read usage")
	}
	if !ok {
		dec := Decide(p.Tier, DailyFreeConversions)
		return dec, apperr.WithDetails(apperr.New(apperr.SubscriptionRequired, "subscription required"), dec.Reason)
	}
	return model.AccessDecision{Allowed: true}, nil
}

// Release returns a conversion reserved by Admit for a request that never created a job.
func (g *Gate) Release(ctx context.Context, p model.Principal, now time.Time) error {
	if p.Tier == model.TierPremium {
		return nil
	}
	if err := g.counter.ReleaseForDay(ctx, p.ID, Day(now)); err != nil {
		return apperr.Wrap(err, apperr.InternalError, "failed to release usage")
	}
	return nil
}
