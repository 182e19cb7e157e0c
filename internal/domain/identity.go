package domain

import (
	"context"
	"time"
)

// Identity is the request-scoped caller resolved once by the auth layer and
// immutable for the lifetime of the request. The zero value is Anonymous.
type Identity struct {
	ID       string
	Email    string
	Role     string
	IssuedAt time.Time

	// Service marks callers authenticated by the shared service token
	// rather than a user credential.
	Service bool
}

func (i Identity) Anonymous() bool {
	return i.ID == "" && !i.Service
}

// Credentials carries the raw credential material extracted from inbound
// request headers, before validation.
type Credentials struct {
	BearerToken  string
	ServiceToken string
}

type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)
}
