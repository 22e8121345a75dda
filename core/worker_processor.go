package core

import (
	"context"
	"fmt"
	"strings"
)

// ViewWarmer re-renders a cached view at its current version.
type ViewWarmer interface {
	Warm(ctx context.Context, path string) error
}

// RevalidationProcessor consumes invalidated path tokens from the queue and
// re-warms the matching views so the next reader hits the cache.
type RevalidationProcessor struct {
	warmers map[string]ViewWarmer
}

func NewRevalidationProcessor() *RevalidationProcessor {
	return &RevalidationProcessor{warmers: map[string]ViewWarmer{}}
}

// Register routes jobs for path to w.
func (p *RevalidationProcessor) Register(path string, w ViewWarmer) *RevalidationProcessor {
	p.warmers[path] = w
	return p
}

// Process re-warms the view named by job. Unknown paths are dropped with
// ErrUnknownView so the worker acks them instead of retrying.
func (p *RevalidationProcessor) Process(ctx context.Context, job string) error {
	path := strings.TrimSpace(job)
	w, ok := p.warmers[path]
	if !ok {
		revalidationJobs.WithLabelValues("unknown").Inc()
		return fmt.Errorf("%w: %q", ErrUnknownView, path)
	}
	if err := w.Warm(ctx, path); err != nil {
		revalidationJobs.WithLabelValues("failed").Inc()
		return err
	}
	revalidationJobs.WithLabelValues("ok").Inc()
	return nil
}
