package resolver

import (
	"context"
	"time"

	"pelorus/internal/domain"
	"pelorus/internal/infra/ratelimit"
	"pelorus/internal/infra/store"
)

// Aggregate resolvers compute values over already-fetched rows plus static
// configuration. None of them writes.

func (r *Registry) registerAggregates() {
	r.query("forecasts", r.forecastsHandler())
	r.query("analytics", r.analyticsHandler())
	r.query("status", r.statusHandler())
}

// forecastsHandler derives a sailing outlook per vessel from the vessel
// list and the synthetic weather model.
func (r *Registry) forecastsHandler() Handler {
	return func(ctx context.Context, args map[string]any, _ domain.Identity) (any, error) {
		filter := store.Filter{}
		if vesselID, ok := argString(args, "vessel_id"); ok {
			filter["id"] = vesselID
		}
		vessels, err := r.deps.Store.Select(ctx, "vessels", filter, 0, 0)
		if err != nil {
			return nil, err
		}
		out := make([]store.Row, 0, len(vessels))
		for _, vessel := range vessels {
			id, _ := vessel["id"].(string)
			name, _ := vessel["name"].(string)
			s := seed("forecast", id)
			outlook := "favorable"
			if s > 0.66 {
				outlook = "adverse"
			} else if s > 0.33 {
				outlook = "marginal"
			}
			out = append(out, store.Row{
				"vessel_id":     id,
				"vessel_name":   name,
				"outlook":       outlook,
				"wind_knots":    round1(4 + s*30),
				"wave_height_m": round1(0.3 + s*4.5),
				"valid_until":   r.now().UTC().Add(12 * time.Hour).Format(time.RFC3339),
			})
		}
		return out, nil
	}
}

// analyticsHandler reports role statistics over the user table.
func (r *Registry) analyticsHandler() Handler {
	return func(ctx context.Context, _ map[string]any, _ domain.Identity) (any, error) {
		users, err := r.deps.Store.Select(ctx, usersTable, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		roles := map[string]int{}
		for _, user := range users {
			role, _ := user["role"].(string)
			if role == "" {
				role = "unassigned"
			}
			roles[role]++
		}
		return store.Row{
			"total_users": len(users),
			"roles":       roles,
		}, nil
	}
}

// statusHandler exposes uptime and the static rate-limit plan. It reads no
// live counters; the plan is configuration, not state.
func (r *Registry) statusHandler() Handler {
	return func(_ context.Context, _ map[string]any, _ domain.Identity) (any, error) {
		limits := map[string]any{
			"default": planEntry(r.deps.Plan.Default),
		}
		for endpoint, limit := range r.deps.Plan.Endpoints {
			limits[endpoint] = planEntry(limit)
		}
		return store.Row{
			"service":        "pelorus-gateway",
			"uptime_seconds": int(r.now().Sub(r.deps.StartedAt).Seconds()),
			"rate_limits":    limits,
		}, nil
	}
}

func planEntry(l ratelimit.Limit) map[string]any {
	return map[string]any{
		"max_requests": l.Requests,
		"window_ms":    l.Window.Milliseconds(),
	}
}
