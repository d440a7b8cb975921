package channel

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadpilot/leadpilot/internal/models"
)

// startPolling запускает цикл опроса моста для аккаунта.
// На один аккаунт существует не больше одного цикла; повторный запуск
// при живом цикле — no-op. Цикл завершается сам, когда привязка
// заканчивается (Connected или Disconnected), и перезапускается
// следующим вызовом Connect.
func (c *Controller) startPolling(accountUID string) {
	c.mu.Lock()
	if _, ok := c.loops[accountUID]; ok {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.loops[accountUID] = cancel
	c.mu.Unlock()

	go c.pollLoop(ctx, accountUID)
}

// stopPolling останавливает цикл опроса аккаунта, если он запущен.
func (c *Controller) stopPolling(accountUID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.loops[accountUID]; ok {
		cancel()
		delete(c.loops, accountUID)
	}
}

func (c *Controller) pollLoop(ctx context.Context, accountUID string) {
	defer c.stopPolling(accountUID)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn, err := c.Poll(ctx, accountUID)
			if err != nil {
				c.log.Warn("poll loop iteration failed",
					slog.String("account_uid", accountUID))
				continue
			}
			if conn.Status == models.ChannelConnected || conn.Status == models.ChannelDisconnected {
				return
			}
		}
	}
}
