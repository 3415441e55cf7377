package decision

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Rule interface {
	Name() string
	Evaluate(ctx context.Context, d Details, cost int) (RuleResult, error)
}

// Engine evaluates its rules in order; the first DENY ends the evaluation.
type Engine struct {
	rules   []Rule
	proxies TrustedProxies
	logger  *zap.Logger
}

// NewEngine keys rules on the client IP as seen through proxies.
func NewEngine(logger *zap.Logger, proxies TrustedProxies, rules ...Rule) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rules: rules, proxies: proxies, logger: logger}
}

func (e *Engine) Protect(ctx context.Context, r *http.Request, cost int) (Decision, error) {
	details := DetailsFromRequest(r, e.proxies)
	dec := Decision{
		ID:         "lcl_" + uuid.NewString(),
		Conclusion: Allow,
		Reason:     Reason{Kind: ReasonNone},
		Results:    make([]RuleResult, 0, len(e.rules)),
	}

	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, details, cost)
		if err != nil {
			e.logger.Warn("decision rule failed", zap.String("rule", rule.Name()), zap.Error(err))
			return Decision{}, fmt.Errorf("%w: rule %s: %v", ErrUnavailable, rule.Name(), err)
		}
		dec.Results = append(dec.Results, res)

		if res.Conclusion == Deny {
			dec.Conclusion = Deny
			dec.Reason = res.Reason
			e.logger.Debug("request denied",
				zap.String("decision_id", dec.ID),
				zap.String("rule", res.Rule),
				zap.String("reason", string(res.Reason.Kind)),
				zap.String("ip", details.IP),
			)
			break
		}
	}

	return dec, nil
}
