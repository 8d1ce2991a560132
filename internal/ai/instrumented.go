package ai

import (
	"context"
	"time"

	"github.com/callcoach/backend/internal/metrics"
)

type instrumented struct {
	next Completer
}

// Instrument records request counts and latency per purpose.
func Instrument(next Completer) Completer {
	return instrumented{next: next}
}

func (i instrumented) CompleteChat(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	start := time.Now()
	out, err := i.next.CompleteChat(ctx, systemPrompt, userPrompt, opts)
	metrics.CollaboratorLatency.WithLabelValues(string(opts.Purpose)).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.CollaboratorRequests.WithLabelValues(string(opts.Purpose), outcome).Inc()
	return out, err
}
