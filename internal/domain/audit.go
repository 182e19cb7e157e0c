package domain

import (
	"context"
	"time"
)

type AuditOutcome string

const (
	AuditSuccess AuditOutcome = "success"
	AuditError   AuditOutcome = "error"
)

// AuditRecord is one append-only trail entry written after a request has
// been resolved. The gateway only ever writes these; it never reads them
// back.
type AuditRecord struct {
	CallerID  string
	Endpoint  string
	Method    string
	Outcome   AuditOutcome
	Timestamp time.Time
	Metadata  map[string]any
}

type AuditSink interface {
	Append(ctx context.Context, rec AuditRecord) error
}
