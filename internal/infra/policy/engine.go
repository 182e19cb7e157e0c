package policy

import (
	"context"
	"errors"

	"github.com/open-policy-agent/opa/rego"
)

const allowQuery = "data.pelorus.authz.allow"

// defaultModule is the built-in role policy for admin-scoped operations.
// Deployments can replace it wholesale through POLICY_PATH.
const defaultModule = `package pelorus.authz

default allow = false

allow {
	input.role == "admin"
}

allow {
	input.role == "service"
}

allow {
	input.operation == "updateUser"
	input.target_owner == input.caller_id
}
`

// Input is the document evaluated against the authz policy.
type Input struct {
	Operation   string
	Role        string
	CallerID    string
	TargetOwner string
}

type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the authz policy once; evaluation is per request.
func NewEngine(ctx context.Context, policyPath string) (*Engine, error) {
	opts := []func(*rego.Rego){rego.Query(allowQuery)}
	if policyPath != "" {
		opts = append(opts, rego.Load([]string{policyPath}, nil))
	} else {
		opts = append(opts, rego.Module("authz.rego", defaultModule))
	}
	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

// Allow reports whether the caller may run the named admin-scoped
// operation. Evaluation errors deny.
func (e *Engine) Allow(ctx context.Context, input Input) (bool, error) {
	if e == nil {
		return false, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{
		"operation":    input.Operation,
		"role":         input.Role,
		"caller_id":    input.CallerID,
		"target_owner": input.TargetOwner,
	}))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}
