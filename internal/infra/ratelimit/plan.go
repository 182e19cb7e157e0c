package ratelimit

import "time"

// Limit is one endpoint's static budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Plan maps logical endpoints to budgets. Keys are endpoint names, not
// callers: a single hot caller spends the whole endpoint budget. That is a
// known gap kept for parity with the observed behavior.
type Plan struct {
	Default   Limit
	Endpoints map[string]Limit
}

func (p Plan) For(endpoint string) Limit {
	if l, ok := p.Endpoints[endpoint]; ok {
		return l
	}
	return p.Default
}
