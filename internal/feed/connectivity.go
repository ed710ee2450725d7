package feed

import (
	"context"
	"time"
)

// probeLoop runs probe immediately and then every interval until ctx ends,
// reporting each outcome. Used by transports without a native connection event.
func probeLoop(ctx context.Context, interval time.Duration, probe func(context.Context) error, report func(error)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		err := probe(ctx)
		if ctx.Err() != nil {
			return
		}
		report(err)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
