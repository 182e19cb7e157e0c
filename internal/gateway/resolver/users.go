package resolver

import (
	"context"
	"time"

	"pelorus/internal/domain"
	"pelorus/internal/infra/store"
)

const usersTable = "users"

// Columns never returned to callers, whatever the backing row carries.
var sensitiveUserColumns = []string{"password_hash", "reset_token"}

func (r *Registry) registerUsers() {
	r.query("users", r.usersHandler())
	r.mutation("updateUser", r.updateUserHandler())
}

func (r *Registry) usersHandler() Handler {
	return func(ctx context.Context, args map[string]any, _ domain.Identity) (any, error) {
		if id, ok := argString(args, "id"); ok {
			row, err := r.deps.Store.Get(ctx, usersTable, id)
			if err != nil {
				return nil, err
			}
			return []store.Row{scrubUser(row)}, nil
		}
		filter := store.Filter{}
		if role, ok := argString(args, "role"); ok {
			filter["role"] = role
		}
		limit, _ := argInt(args, "limit")
		offset, _ := argInt(args, "offset")
		rows, err := r.deps.Store.Select(ctx, usersTable, filter, limit, offset)
		if err != nil {
			return nil, err
		}
		out := make([]store.Row, len(rows))
		for i, row := range rows {
			out[i] = scrubUser(row)
		}
		return out, nil
	}
}

// updateUserHandler lets a caller edit their own profile; editing anyone
// else requires the admin policy to agree.
func (r *Registry) updateUserHandler() Handler {
	return func(ctx context.Context, args map[string]any, caller domain.Identity) (any, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		id, ok := argString(args, "id")
		if !ok {
			id = caller.ID
		}
		if err := r.checkPolicy(ctx, "updateUser", caller, id); err != nil {
			return nil, err
		}
		fields := store.Row{}
		for _, name := range []string{"display_name", "email", "phone"} {
			if v, ok := args[name]; ok && v != nil {
				fields[name] = v
			}
		}
		if len(fields) == 0 {
			return nil, domain.NewValidationError("fields", "no updatable fields provided")
		}
		fields["updated_at"] = r.now().UTC().Format(time.RFC3339)
		row, err := r.deps.Store.Update(ctx, usersTable, id, fields)
		if err != nil {
			return nil, err
		}
		return scrubUser(row), nil
	}
}

func scrubUser(row store.Row) store.Row {
	out := make(store.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, col := range sensitiveUserColumns {
		delete(out, col)
	}
	return out
}
