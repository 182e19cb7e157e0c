// Package resolver holds the gateway's shared resolver set. Both protocol
// adapters dispatch into the same static registry, so every REST route and
// every GraphQL field name lands on exactly one handler here.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pelorus/internal/domain"
	"pelorus/internal/infra/policy"
	"pelorus/internal/infra/ratelimit"
	"pelorus/internal/infra/store"
)

// Handler is one logical operation. It returns a value or an error from the
// domain taxonomy, never both.
type Handler func(ctx context.Context, args map[string]any, caller domain.Identity) (any, error)

type Deps struct {
	Store  store.Client
	Policy *policy.Engine
	Plan   ratelimit.Plan
	Log    *slog.Logger

	// Clock overrides time for tests.
	Clock     func() time.Time
	StartedAt time.Time
}

type key struct {
	domain domain.OperationDomain
	name   string
}

type Registry struct {
	deps     Deps
	handlers map[key]Handler
}

func New(deps Deps) *Registry {
	if deps.Store == nil {
		deps.Store = store.Unavailable{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = deps.Clock()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	r := &Registry{
		deps:     deps,
		handlers: make(map[key]Handler),
	}
	r.registerMocks()
	r.registerResources()
	r.registerUsers()
	r.registerAPIKeys()
	r.registerAggregates()
	return r
}

func (r *Registry) register(d domain.OperationDomain, name string, h Handler) {
	k := key{domain: d, name: name}
	if _, dup := r.handlers[k]; dup {
		panic(fmt.Sprintf("resolver: duplicate registration for %s %s", d, name))
	}
	r.handlers[k] = h
}

func (r *Registry) query(name string, h Handler)    { r.register(domain.DomainQuery, name, h) }
func (r *Registry) mutation(name string, h Handler) { r.register(domain.DomainMutation, name, h) }

// Resolve dispatches one normalized operation. Unknown operations fail
// closed with NotFound rather than silently succeeding.
func (r *Registry) Resolve(ctx context.Context, op domain.Operation, caller domain.Identity) (any, error) {
	h, ok := r.handlers[key{domain: op.Domain, name: op.Name}]
	if !ok {
		return nil, fmt.Errorf("%w: no resolver for %s %q", domain.ErrNotFound, op.Domain, op.Name)
	}
	return h(ctx, op.Args, caller)
}

// Has reports whether an operation is registered, for adapters that want to
// fail before invoking.
func (r *Registry) Has(d domain.OperationDomain, name string) bool {
	_, ok := r.handlers[key{domain: d, name: name}]
	return ok
}

func (r *Registry) now() time.Time { return r.deps.Clock() }

// checkPolicy gates admin-scoped operations through the authz policy.
// Evaluation failures deny and are logged server-side.
func (r *Registry) checkPolicy(ctx context.Context, operation string, caller domain.Identity, targetOwner string) error {
	if r.deps.Policy == nil {
		return nil
	}
	allowed, err := r.deps.Policy.Allow(ctx, policy.Input{
		Operation:   operation,
		Role:        caller.Role,
		CallerID:    caller.ID,
		TargetOwner: targetOwner,
	})
	if err != nil {
		r.deps.Log.Error("policy evaluation failed", "operation", operation, "error", err)
		return domain.ErrForbidden
	}
	if !allowed {
		return domain.ErrForbidden
	}
	return nil
}
