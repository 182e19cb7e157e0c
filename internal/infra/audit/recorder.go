package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pelorus/internal/domain"
)

// Recorder appends trail entries off the request path. A failed or timed-out
// append is logged and dropped; it never influences the response.
type Recorder struct {
	sink    domain.AuditSink
	log     *slog.Logger
	timeout time.Duration
	clock   func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(sink domain.AuditSink, log *slog.Logger, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{
		sink:    sink,
		log:     log,
		timeout: timeout,
		clock:   time.Now,
	}
}

// Record schedules the append and returns immediately.
func (r *Recorder) Record(rec domain.AuditRecord) {
	if r == nil || r.sink == nil {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.clock().UTC()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.sink.Append(ctx, rec); err != nil {
			r.log.Warn("audit append failed",
				"endpoint", rec.Endpoint,
				"method", rec.Method,
				"error", err,
			)
		}
	}()
}

// Flush waits for in-flight appends. Called on shutdown and by tests.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
