package decision

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

type signature struct {
	name    string
	pattern *regexp.Regexp
}

var shieldSignatures = []signature{
	{"path-traversal", regexp.MustCompile(`(?:\.\./|\.\.\\)`)},
	{"sensitive-file", regexp.MustCompile(`(?i)(?:/etc/passwd|/proc/self/|\.env\b|\.git/)`)},
	{"sql-injection", regexp.MustCompile(`(?i)(?:\bunion\b\s+(?:all\s+)?\bselect\b|'\s*or\s+'?\d+'?\s*=\s*'?\d+|;\s*drop\s+table|\bsleep\s*\(\s*\d+\s*\))`)},
	{"script-injection", regexp.MustCompile(`(?i)(?:<script\b|javascript:|\bon(?:error|load)\s*=)`)},
	{"shell-injection", regexp.MustCompile(`(?:;|\||\$\()\s*(?:cat|curl|wget|sh|bash)\b`)},
}

// ShieldRule denies requests whose URL or User-Agent carries a common attack signature.
type ShieldRule struct{}

func NewShieldRule() *ShieldRule { return &ShieldRule{} }

func (s *ShieldRule) Name() string { return "shield" }

func (s *ShieldRule) Evaluate(_ context.Context, d Details, _ int) (RuleResult, error) {
	for _, candidate := range shieldInputs(d) {
		for _, sig := range shieldSignatures {
			if sig.pattern.MatchString(candidate) {
				return RuleResult{
					Rule:       s.Name(),
					Conclusion: Deny,
					Reason:     Reason{Kind: ReasonShield, Signature: sig.name},
				}, nil
			}
		}
	}
	return RuleResult{Rule: s.Name(), Conclusion: Allow, Reason: Reason{Kind: ReasonNone}}, nil
}

func shieldInputs(d Details) []string {
	inputs := []string{d.Path, d.UserAgent}
	if d.Query != "" {
		inputs = append(inputs, d.Query)
		if q, err := url.QueryUnescape(d.Query); err == nil {
			inputs = append(inputs, q)
		}
	}
	if p, err := url.PathUnescape(d.Path); err == nil && p != d.Path {
		inputs = append(inputs, p)
	}
	return nonBlank(inputs)
}

func nonBlank(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
