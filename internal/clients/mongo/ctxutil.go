package mongo

import (
	"context"
	"time"
)

// OpTimeout bounds a single repository call.
const OpTimeout = 5 * time.Second

func noop() {}

// WithRepoTimeout caps ctx at d. A parent that is already done, or that
// expires within d, is returned as is with a no-op cancel, so callers can
// always defer cancel().
func WithRepoTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx.Err() != nil {
		return ctx, noop
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= d {
		return ctx, noop
	}
	return context.WithTimeout(ctx, d)
}

func repoCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return WithRepoTimeout(ctx, OpTimeout)
}
