package session

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/dialkeeper/internal/client/tokens"
)

// now is a test seam.
var now = time.Now

// StartTokenRefresher refreshes the portal token every interval while the
// session is Unlocked and the current token expires within the next interval.
// It blocks until ctx is done; run it in its own goroutine.
func (m *Manager) StartTokenRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refreshIfDue(ctx, interval)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) refreshIfDue(ctx context.Context, margin time.Duration) bool {
	if m.State() != Unlocked {
		return false
	}
	if !tokens.RefreshDue(m.store.GetString(pathTokenPortal), now(), margin) {
		return false
	}

	if _, err := m.RefreshToken(ctx); err != nil {
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, context.Canceled) {
			m.logger.Warn(ctx, "scheduled token refresh failed", "error", err)
		}
		return false
	}
	return true
}
