// Package graphql is the gateway's GraphQL front end.
//
// Documents are parsed and validated against the fixed schema, but there is
// no field-level execution engine behind it: the adapter extracts the
// top-level field of the requested operation and routes it straight to the
// shared resolver registry, whose result is returned whole. Nested
// selections are therefore accepted syntactically and ignored for shaping;
// clients receive a superset of the fields they asked for. That is the
// behavioral contract of this gateway, chosen because the resolver set
// mirrors the REST surface one-to-one.
//
// Per GraphQL-over-HTTP convention the endpoint answers 200 even on errors,
// with failures reported in the errors list.
package graphql

import (
	"fmt"

	"pelorus/internal/domain"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Request is the POST /graphql body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type Adapter struct {
	schema *ast.Schema
}

func New() (*Adapter, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "pelorus.graphql", Input: schemaSDL})
	if err != nil {
		return nil, fmt.Errorf("load gateway schema: %w", err)
	}
	return &Adapter{schema: schema}, nil
}

// Parse validates the document and normalizes the requested operation. Any
// returned error is already caller-presentable; no resolver has run yet.
func (a *Adapter) Parse(req Request) (domain.Operation, error) {
	if req.Query == "" {
		return domain.Operation{}, gqlerror.Errorf("query is required")
	}
	doc, listErr := gqlparser.LoadQuery(a.schema, req.Query)
	if len(listErr) > 0 {
		return domain.Operation{}, listErr
	}

	opDef, err := selectOperation(doc, req.OperationName)
	if err != nil {
		return domain.Operation{}, err
	}

	field, err := topLevelField(opDef)
	if err != nil {
		return domain.Operation{}, err
	}

	args := make(map[string]any, len(field.Arguments))
	for _, arg := range field.Arguments {
		value, err := arg.Value.Value(req.Variables)
		if err != nil {
			return domain.Operation{}, gqlerror.Errorf("argument %q: %s", arg.Name, err.Error())
		}
		if value != nil {
			args[arg.Name] = value
		}
	}

	opDomain := domain.DomainQuery
	if opDef.Operation == ast.Mutation {
		opDomain = domain.DomainMutation
	}
	return domain.Operation{Domain: opDomain, Name: field.Name, Args: args}, nil
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range doc.Operations {
			if op.Name == name {
				return op, nil
			}
		}
		return nil, gqlerror.Errorf("operation %q not found in document", name)
	}
	if len(doc.Operations) != 1 {
		return nil, gqlerror.Errorf("operationName is required when the document defines %d operations", len(doc.Operations))
	}
	return doc.Operations[0], nil
}

// topLevelField returns the single root field being requested. Multiple
// root fields in one operation are rejected: the router dispatches exactly
// one resolver per request.
func topLevelField(op *ast.OperationDefinition) (*ast.Field, error) {
	var field *ast.Field
	for _, sel := range op.SelectionSet {
		f, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		if f.Name == "__typename" || f.Name == "__schema" || f.Name == "__type" {
			return nil, gqlerror.Errorf("introspection is not supported")
		}
		if field != nil {
			return nil, gqlerror.Errorf("exactly one top-level field is supported per operation")
		}
		field = f
	}
	if field == nil {
		return nil, gqlerror.Errorf("operation has no top-level field")
	}
	return field, nil
}

// Messages flattens any adapter or resolver error into GraphQL error
// entries.
func Messages(err error) []map[string]any {
	if list, ok := err.(gqlerror.List); ok {
		out := make([]map[string]any, 0, len(list))
		for _, e := range list {
			out = append(out, map[string]any{"message": e.Message})
		}
		return out
	}
	var gqlErr *gqlerror.Error
	if e, ok := err.(*gqlerror.Error); ok {
		gqlErr = e
	}
	if gqlErr != nil {
		return []map[string]any{{"message": gqlErr.Message}}
	}
	return []map[string]any{{"message": err.Error()}}
}
