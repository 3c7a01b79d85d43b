// Package traveltime estimates one-way driving time between a partner's base and a job site.
// Lookups are best-effort: every failure degrades to an unavailable Result, never an error.
package traveltime

import (
	"context"
)

// Reason explains why no estimate is available.
type Reason string

const (
	ReasonNotConfigured Reason = "not_configured"
	ReasonNoOrigin      Reason = "no_origin"
	ReasonRequestFailed Reason = "request_failed"
	ReasonNoRoute       Reason = "no_route"
)

// Result keeps "lookup failed" distinct from "never computed" (a nil *Result).
type Result struct {
	Minutes int
	Reason  Reason
}

func Available(minutes int) Result { return Result{Minutes: minutes} }

func Unavailable(r Reason) Result { return Result{Reason: r} }

func (r Result) OK() bool { return r.Reason == "" }

// MinutesPtr is the stored form: nil when unavailable.
func (r Result) MinutesPtr() *int {
	if !r.OK() {
		return nil
	}
	m := r.Minutes
	return &m
}

type Estimator interface {
	Estimate(ctx context.Context, origin, destination string) Result
}

// KeySource reads the API credential at call time so admin edits apply without restart.
type KeySource interface {
	Value(ctx context.Context, key string) (string, error)
}
