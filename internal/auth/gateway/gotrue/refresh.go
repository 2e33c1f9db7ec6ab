package gotrue

import (
	"context"
	"time"

	"calorie/pkg/requestcontext"
)

const minRefreshTick = time.Second

// AutoRefresh refreshes the persisted session whenever its access token is
// within margin of expiring. It blocks until ctx is done.
func (c *Client) AutoRefresh(ctx context.Context, margin time.Duration) error {
	tick := margin / 2
	if tick < minRefreshTick {
		tick = minRefreshTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.refreshIfDue(ctx, margin)
		}
	}
}

func (c *Client) refreshIfDue(ctx context.Context, margin time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.loadLocked(ctx)
	if err != nil || current == nil || current.ExpiresAt.IsZero() {
		return
	}
	if requestcontext.Now(ctx).Add(margin).Before(current.ExpiresAt) {
		return
	}
	if _, err := c.refreshLocked(ctx, current); err != nil {
		c.logger.WarnContext(ctx, "background session refresh failed", "error", err)
		return
	}
	c.logger.DebugContext(ctx, "session refreshed in background", "user_id", current.User.ID)
}
