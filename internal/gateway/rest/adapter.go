// Package rest maps (path, method) pairs onto the shared resolver set.
// Method dispatch happens per endpoint, not in a shared router: an
// unsupported method on a known path yields the endpoint's own error
// shape, not a transport-level 405.
package rest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"

	"pelorus/internal/domain"
)

type opRef struct {
	domain domain.OperationDomain
	name   string
}

func query(name string) opRef    { return opRef{domain: domain.DomainQuery, name: name} }
func mutation(name string) opRef { return opRef{domain: domain.DomainMutation, name: name} }

// Endpoint is one logical resource path and its per-method operations.
type Endpoint struct {
	Path    string
	methods map[string]opRef
}

type Adapter struct {
	endpoints map[string]Endpoint
	sorted    []string
}

func New() *Adapter {
	table := map[string]map[string]opRef{
		"weather":   {http.MethodGet: query("weather")},
		"satellite": {http.MethodGet: query("satellite")},
		"ais":       {http.MethodGet: query("ais")},
		"logistics": {http.MethodGet: query("logistics")},
		"documents": {
			http.MethodGet:    query("documents"),
			http.MethodPost:   mutation("createDocument"),
			http.MethodPut:    mutation("updateDocument"),
			http.MethodPatch:  mutation("updateDocument"),
			http.MethodDelete: mutation("deleteDocument"),
		},
		"checklists": {
			http.MethodGet:    query("checklists"),
			http.MethodPost:   mutation("createChecklist"),
			http.MethodPut:    mutation("updateChecklist"),
			http.MethodPatch:  mutation("updateChecklist"),
			http.MethodDelete: mutation("deleteChecklist"),
		},
		"audits": {
			http.MethodGet:  query("audits"),
			http.MethodPost: mutation("createAudit"),
		},
		"vessels": {
			http.MethodGet:    query("vessels"),
			http.MethodPost:   mutation("createVessel"),
			http.MethodPut:    mutation("updateVessel"),
			http.MethodPatch:  mutation("updateVessel"),
			http.MethodDelete: mutation("deleteVessel"),
		},
		"forecasts": {http.MethodGet: query("forecasts")},
		"analytics": {http.MethodGet: query("analytics")},
		"templates": {
			http.MethodGet:    query("templates"),
			http.MethodPost:   mutation("createTemplate"),
			http.MethodDelete: mutation("deleteTemplate"),
		},
		"users": {
			http.MethodGet:   query("users"),
			http.MethodPut:   mutation("updateUser"),
			http.MethodPatch: mutation("updateUser"),
		},
		"api-keys": {
			http.MethodGet:    query("apiKeys"),
			http.MethodPost:   mutation("createApiKey"),
			http.MethodDelete: mutation("deleteApiKey"),
		},
		"webhooks": {
			http.MethodGet:    query("webhooks"),
			http.MethodPost:   mutation("createWebhook"),
			http.MethodDelete: mutation("deleteWebhook"),
		},
		"status": {http.MethodGet: query("status")},
	}

	a := &Adapter{endpoints: make(map[string]Endpoint, len(table))}
	for path, methods := range table {
		a.endpoints[path] = Endpoint{Path: path, methods: methods}
		a.sorted = append(a.sorted, path)
	}
	sort.Strings(a.sorted)
	return a
}

// Lookup resolves a request path like "documents" to its endpoint.
func (a *Adapter) Lookup(path string) (Endpoint, bool) {
	e, ok := a.endpoints[path]
	return e, ok
}

// Paths lists every known endpoint, for the discoverable 404 body.
func (a *Adapter) Paths() []string {
	return a.sorted
}

// BuildOperation normalizes one HTTP request into an Operation. Query
// parameters populate args for every method; for POST/PUT/PATCH the JSON
// body is merged on top of them.
func (e Endpoint) BuildOperation(method string, params url.Values, body []byte) (domain.Operation, error) {
	ref, ok := e.methods[method]
	if !ok {
		return domain.Operation{}, domain.NewValidationError("method", "Method not allowed")
	}

	args := make(map[string]any, len(params))
	for name := range params {
		args[name] = params.Get(name)
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if len(body) > 0 {
			var fields map[string]any
			if err := json.Unmarshal(body, &fields); err != nil {
				return domain.Operation{}, domain.NewValidationError("body", "invalid JSON body")
			}
			for k, v := range fields {
				args[k] = v
			}
		}
	}
	return domain.Operation{Domain: ref.domain, Name: ref.name, Args: args}, nil
}
