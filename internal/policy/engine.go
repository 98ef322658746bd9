// Package policy evaluates the chat quota policy with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const (
	DecisionAllow         = "allow"
	DecisionQuotaExceeded = "quota_exceeded"
)

// QuotaInput is the document the policy is evaluated against.
type QuotaInput struct {
	UserID       string
	Used         int
	Limit        int
	BonusCredits int
}

func (in QuotaInput) toMap() map[string]any {
	return map[string]any{
		"user_id":       in.UserID,
		"used":          in.Used,
		"limit":         in.Limit,
		"bonus_credits": in.BonusCredits,
	}
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares policyContent. The module must define
// data.hostwise.quota.decision.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.hostwise.quota.decision"),
		rego.Module("quota.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the decision for a send attempt.
func (e *Engine) Evaluate(ctx context.Context, input QuotaInput) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input.toMap()))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	return s, nil
}

// Allowed is a convenience wrapper around Evaluate.
func (e *Engine) Allowed(ctx context.Context, input QuotaInput) (bool, error) {
	decision, err := e.Evaluate(ctx, input)
	if err != nil {
		return false, err
	}
	return decision == DecisionAllow, nil
}

// DefaultPolicy allows a send while the monthly allowance plus bonus
// credits is positive.
const DefaultPolicy = `
package hostwise.quota

default decision := "allow"

available := (input.limit - input.used) + input.bonus_credits

decision := "quota_exceeded" if {
	available <= 0
}
`
