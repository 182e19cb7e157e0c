package resolver

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"pelorus/internal/domain"
	"pelorus/internal/infra/store"

	"github.com/google/uuid"
)

const apiKeysTable = "api_keys"

// keyPrefixLen covers "sk_" plus enough material to recognize a key in a
// list without revealing it.
const keyPrefixLen = 11

func (r *Registry) registerAPIKeys() {
	r.query("apiKeys", r.listAPIKeysHandler())
	r.mutation("createApiKey", r.createAPIKeyHandler())
	r.mutation("deleteApiKey", r.deleteAPIKeyHandler())
}

// createAPIKeyHandler mints a key and returns the full secret exactly once.
// Only the SHA-256 hash and the display prefix are stored.
func (r *Registry) createAPIKeyHandler() Handler {
	return func(ctx context.Context, args map[string]any, caller domain.Identity) (any, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		name, err := requireString(args, "name")
		if err != nil {
			return nil, err
		}
		secret, err := mintKey()
		if err != nil {
			return nil, fmt.Errorf("%w: key generation failed", domain.ErrInternal)
		}
		sum := sha256.Sum256([]byte(secret))

		row := store.Row{
			"id":         uuid.NewString(),
			"owner_id":   caller.ID,
			"name":       name,
			"key_prefix": secret[:keyPrefixLen],
			"key_hash":   hex.EncodeToString(sum[:]),
			"created_at": r.now().UTC().Format(time.RFC3339),
		}
		if scope, ok := args["scope"]; ok && scope != nil {
			row["scope"] = scope
		}
		if _, err := r.deps.Store.Insert(ctx, apiKeysTable, row); err != nil {
			return nil, err
		}
		return store.Row{
			"id":         row["id"],
			"name":       name,
			"key_prefix": row["key_prefix"],
			"key":        secret,
			"scope":      row["scope"],
			"created_at": row["created_at"],
		}, nil
	}
}

// listAPIKeysHandler returns the caller's keys; the hash never leaves the
// store and the secret is gone for good.
func (r *Registry) listAPIKeysHandler() Handler {
	return func(ctx context.Context, _ map[string]any, caller domain.Identity) (any, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		rows, err := r.deps.Store.Select(ctx, apiKeysTable, store.Filter{"owner_id": caller.ID}, 0, 0)
		if err != nil {
			return nil, err
		}
		out := make([]store.Row, len(rows))
		for i, row := range rows {
			scrubbed := make(store.Row, len(row))
			for k, v := range row {
				if k == "key_hash" || k == "key" {
					continue
				}
				scrubbed[k] = v
			}
			out[i] = scrubbed
		}
		return out, nil
	}
}

func (r *Registry) deleteAPIKeyHandler() Handler {
	return func(ctx context.Context, args map[string]any, caller domain.Identity) (any, error) {
		if err := requireCaller(caller); err != nil {
			return nil, err
		}
		id, err := requireString(args, "id")
		if err != nil {
			return nil, err
		}
		row, err := r.deps.Store.Get(ctx, apiKeysTable, id)
		if err != nil {
			return nil, err
		}
		if owner, _ := row["owner_id"].(string); owner != caller.ID {
			return nil, fmt.Errorf("%w: key owned by another caller", domain.ErrForbidden)
		}
		if err := r.deps.Store.Delete(ctx, apiKeysTable, id); err != nil {
			return nil, err
		}
		return store.Row{"id": id, "deleted": true}, nil
	}
}

func mintKey() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "sk_" + hex.EncodeToString(raw), nil
}
