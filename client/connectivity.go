package client

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Health checks that the engine is reachable.
func (c *EngineClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// WatchConnectivity polls the engine and calls onOnline each time it becomes reachable after
// being unreachable, including the first successful probe. It returns when ctx is done.
func WatchConnectivity(ctx context.Context, c *EngineClient, interval time.Duration, onOnline func()) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	online := false
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		err := c.Health(probeCtx)
		cancel()
		switch {
		case err == nil && !online:
			online = true
			c.Logger.Info("Engine reachable")
			onOnline()
		case err != nil && online && ctx.Err() == nil:
			online = false
			c.Logger.Warn("Engine unreachable", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
