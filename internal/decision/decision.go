// Package decision answers one question per request: may it proceed?
//
// A Protector is either the local Engine (shield, bot and token-bucket rules)
// or a Client for a remote decision service. Both return a Decision whose
// Results keep the outcome of every rule that was evaluated.
package decision

import (
	"context"
	"errors"
	"net/http"
)

// ErrUnavailable wraps every failure to obtain a decision. Callers must fail closed.
var ErrUnavailable = errors.New("decision service unavailable")

type Conclusion string

const (
	Allow Conclusion = "ALLOW"
	Deny  Conclusion = "DENY"
	Error Conclusion = "ERROR"
)

type ReasonKind string

const (
	ReasonNone      ReasonKind = "NONE"
	ReasonRateLimit ReasonKind = "RATE_LIMIT"
	ReasonBot       ReasonKind = "BOT"
	ReasonShield    ReasonKind = "SHIELD"
	ReasonError     ReasonKind = "ERROR"
)

type Reason struct {
	Kind ReasonKind `json:"kind"`

	// rate limit
	Remaining    int `json:"remaining,omitempty"`
	ResetSeconds int `json:"reset_seconds,omitempty"`

	// bot
	Bot      string `json:"bot,omitempty"`
	Category string `json:"category,omitempty"`
	Verified bool   `json:"verified,omitempty"`
	Spoofed  bool   `json:"spoofed,omitempty"`

	// shield
	Signature string `json:"signature,omitempty"`
}

func (r Reason) IsRateLimit() bool { return r.Kind == ReasonRateLimit }
func (r Reason) IsBot() bool       { return r.Kind == ReasonBot }
func (r Reason) IsShield() bool    { return r.Kind == ReasonShield }
func (r Reason) IsSpoofed() bool   { return r.Kind == ReasonBot && r.Spoofed }

type RuleResult struct {
	Rule       string     `json:"rule"`
	Conclusion Conclusion `json:"conclusion"`
	Reason     Reason     `json:"reason"`
}

type Decision struct {
	ID         string       `json:"id"`
	Conclusion Conclusion   `json:"conclusion"`
	Reason     Reason       `json:"reason"`
	Results    []RuleResult `json:"results"`
}

func (d Decision) IsDenied() bool  { return d.Conclusion == Deny }
func (d Decision) IsAllowed() bool { return d.Conclusion == Allow }

// HasSpoofedBot reports whether any rule let a bot through while flagging it as spoofed.
func (d Decision) HasSpoofedBot() bool {
	for _, res := range d.Results {
		if res.Reason.IsSpoofed() {
			return true
		}
	}
	return false
}

type Protector interface {
	// Protect spends cost units of the caller's rate budget and returns the verdict.
	Protect(ctx context.Context, r *http.Request, cost int) (Decision, error)
}
