package returns

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"stockbook/internal/core/apperror"
)

// DefaultPolicyExpression accepts any return within the sold bound and
// a 90-day window.
const DefaultPolicyExpression = `quantity <= remaining && days_since_sale <= 90`

// PolicyInput is the fact set a policy expression evaluates against.
type PolicyInput struct {
	Quantity      int64
	Remaining     int64
	Reason        string
	Refund        bool
	DaysSinceSale int64
	AmountCents   int64
}

// Policy is a CEL-compiled return acceptance rule.
// Operators configure the expression without redeploying; the bound
// check (quantity <= remaining) stays enforced in the service
// regardless of what the policy says.
type Policy struct {
	program cel.Program
	source  string
}

// NewPolicy compiles a CEL expression into a return policy.
// The expression must evaluate to a boolean.
func NewPolicy(expression string) (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("quantity", cel.IntType),
		cel.Variable("remaining", cel.IntType),
		cel.Variable("reason", cel.StringType),
		cel.Variable("refund", cel.BoolType),
		cel.Variable("days_since_sale", cel.IntType),
		cel.Variable("amount_cents", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile policy %q: %w", expression, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}

	return &Policy{program: program, source: expression}, nil
}

// DefaultPolicy returns the built-in acceptance rule.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultPolicyExpression)
	if err != nil {
		// The default expression is a compile-time constant
		panic(err)
	}
	return p
}

// Check evaluates the policy and returns a typed error on rejection.
func (p *Policy) Check(in PolicyInput) error {
	out, _, err := p.program.Eval(map[string]any{
		"quantity":        in.Quantity,
		"remaining":       in.Remaining,
		"reason":          in.Reason,
		"refund":          in.Refund,
		"days_since_sale": in.DaysSinceSale,
		"amount_cents":    in.AmountCents,
	})
	if err != nil {
		return fmt.Errorf("evaluate return policy: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return fmt.Errorf("return policy produced non-bool result %v", out.Value())
	}

	if !allowed {
		return apperror.NewBusinessRule(apperror.CodeReturnPolicy, "return rejected by policy").
			WithDetail("policy", p.source).
			WithDetail("quantity", in.Quantity).
			WithDetail("days_since_sale", in.DaysSinceSale)
	}

	return nil
}
