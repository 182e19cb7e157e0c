package domain

// OperationDomain mirrors the two GraphQL root types. REST routes map onto
// the same two domains so both protocol adapters dispatch identically.
type OperationDomain string

const (
	DomainQuery    OperationDomain = "Query"
	DomainMutation OperationDomain = "Mutation"
)

// Operation is the normalized unit of dispatch: whichever adapter produced
// it, exactly one resolver owns the (Domain, Name) pair.
type Operation struct {
	Domain OperationDomain
	Name   string
	Args   map[string]any
}
