package resolver

import (
	"context"
	"fmt"
	"time"

	"pelorus/internal/domain"
	"pelorus/internal/infra/store"

	"github.com/google/uuid"
)

// resource describes one store-backed table exposed through the gateway.
// Writes are identity-scoped: rows carry owner_id and mutations verify it.
type resource struct {
	name     string
	table    string
	required []string
	optional []string
	// filters lists query arguments usable on reads beyond id/limit/offset.
	filters []string
	// adminOnly routes create/delete through the authz policy.
	adminOnly bool
}

func (r *Registry) registerResources() {
	documents := resource{
		name:     "documents",
		table:    "documents",
		required: []string{"title"},
		optional: []string{"category", "vessel_id", "content"},
		filters:  []string{"category", "vessel_id"},
	}
	checklists := resource{
		name:     "checklists",
		table:    "checklists",
		required: []string{"name"},
		optional: []string{"vessel_id", "items"},
		filters:  []string{"vessel_id"},
	}
	audits := resource{
		name:     "audits",
		table:    "vessel_audits",
		required: []string{"vessel_id"},
		optional: []string{"finding", "severity"},
		filters:  []string{"vessel_id", "severity"},
	}
	vessels := resource{
		name:     "vessels",
		table:    "vessels",
		required: []string{"name"},
		optional: []string{"imo", "flag", "vessel_type"},
		filters:  []string{"flag", "vessel_type"},
	}
	templates := resource{
		name:      "templates",
		table:     "templates",
		required:  []string{"name"},
		optional:  []string{"body"},
		adminOnly: true,
	}
	webhooks := resource{
		name:     "webhooks",
		table:    "webhooks",
		required: []string{"url"},
		optional: []string{"event"},
		filters:  []string{"event"},
	}

	r.query("documents", r.listHandler(documents))
	r.mutation("createDocument", r.createHandler(documents, "createDocument"))
	r.mutation("updateDocument", r.updateHandler(documents, "updateDocument"))
	r.mutation("deleteDocument", r.deleteHandler(documents, "deleteDocument"))

	r.query("checklists", r.listHandler(checklists))
	r.mutation("createChecklist", r.createHandler(checklists, "createChecklist"))
	r.mutation("updateChecklist", r.updateHandler(checklists, "updateChecklist"))
	r.mutation("deleteChecklist", r.deleteHandler(checklists, "deleteChecklist"))

	r.query("audits", r.listHandler(audits))
	r.mutation("createAudit", r.createHandler(audits, "createAudit"))

	r.query("vessels", r.listHandler(vessels))
	r.mutation("createVessel", r.createHandler(vessels, "createVessel"))
	r.mutation("updateVessel", r.updateHandler(vessels, "updateVessel"))
	r.mutation("deleteVessel", r.deleteHandler(vessels, "deleteVessel"))

	r.query("templates", r.listHandler(templates))
	r.mutation("createTemplate", r.createHandler(templates, "createTemplate"))
	r.mutation("deleteTemplate", r.deleteHandler(templates, "deleteTemplate"))

	r.query("webhooks", r.listHandler(webhooks))
	r.mutation("createWebhook", r.createHandler(webhooks, "createWebhook"))
	r.mutation("deleteWebhook", r.deleteHandler(webhooks, "deleteWebhook"))
}

// listHandler is the read-through shape: optional id lookup, optional
// filters, optional pagination, rows returned as stored.
func (r *Registry) listHandler(res resource) Handler {
	return func(ctx context.Context, args map[string]any, _ domain.Identity) (any, error) {
		if id, ok := argString(args, "id"); ok {
			row, err := r.deps.Store.Get(ctx, res.table, id)
			if err != nil {
				return nil, err
			}
			return []store.Row{row}, nil
		}
		filter := store.Filter{}
		for _, name := range res.filters {
			if v, ok := argString(args, name); ok {
				filter[name] = v
			}
		}
		limit, _ := argInt(args, "limit")
		offset, _ := argInt(args, "offset")
		return r.deps.Store.Select(ctx, res.table, filter, limit, offset)
	}
}

func (r *Registry) createHandler(res resource, operation string) Handler {
	return func(ctx context.Context, args map[string]any, caller domain.Identity) (any, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		if res.adminOnly {
			if err := r.checkPolicy(ctx, operation, caller, ""); err != nil {
				return nil, err
			}
		}
		row := store.Row{
			"id":         uuid.NewString(),
			"owner_id":   caller.ID,
			"created_at": r.now().UTC().Format(time.RFC3339),
		}
		for _, name := range res.required {
			value, err := requireString(args, name)
			if err != nil {
				return nil, err
			}
			row[name] = value
		}
		for _, name := range res.optional {
			if v, ok := args[name]; ok && v != nil {
				row[name] = v
			}
		}
		return r.deps.Store.Insert(ctx, res.table, row)
	}
}

func (r *Registry) updateHandler(res resource, operation string) Handler {
	return func(ctx context.Context, args map[string]any, caller domain.Identity) (any, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		id, err := requireString(args, "id")
		if err != nil {
			return nil, err
		}
		row, err := r.deps.Store.Get(ctx, res.table, id)
		if err != nil {
			return nil, err
		}
		if err := r.authorizeWrite(ctx, res, operation, caller, row); err != nil {
			return nil, err
		}
		fields := store.Row{}
		for _, name := range append(res.required, res.optional...) {
			if v, ok := args[name]; ok && v != nil {
				fields[name] = v
			}
		}
		if len(fields) == 0 {
			return nil, domain.NewValidationError("fields", "no updatable fields provided")
		}
		fields["updated_at"] = r.now().UTC().Format(time.RFC3339)
		return r.deps.Store.Update(ctx, res.table, id, fields)
	}
}

func (r *Registry) deleteHandler(res resource, operation string) Handler {
	return func(ctx context.Context, args map[string]any, caller domain.Identity) (any, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		id, err := requireString(args, "id")
		if err != nil {
			return nil, err
		}
		row, err := r.deps.Store.Get(ctx, res.table, id)
		if err != nil {
			return nil, err
		}
		if err := r.authorizeWrite(ctx, res, operation, caller, row); err != nil {
			return nil, err
		}
		if err := r.deps.Store.Delete(ctx, res.table, id); err != nil {
			return nil, err
		}
		return store.Row{"id": id, "deleted": true}, nil
	}
}

// authorizeWrite enforces ownership for plain resources and the authz
// policy for admin-only ones. A mismatched owner is Forbidden, never a
// silent no-op.
func (r *Registry) authorizeWrite(ctx context.Context, res resource, operation string, caller domain.Identity, row store.Row) error {
	owner, _ := row["owner_id"].(string)
	if res.adminOnly {
		return r.checkPolicy(ctx, operation, caller, owner)
	}
	if owner != caller.ID {
		return fmt.Errorf("%w: row owned by another caller", domain.ErrForbidden)
	}
	return nil
}
