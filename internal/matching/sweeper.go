package matching

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often the liveness sweeper runs.
const DefaultSweepInterval = 10 * time.Second

// StartSweeper runs the background liveness loop until ctx is cancelled:
// each tick it evicts waiting participants with stale heartbeats and expires
// pending matches past their acceptance deadline. Both paths go through the
// coordinator so the owning gateways get notified.
func StartSweeper(ctx context.Context, coord *Coordinator, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[matcher] sweeper stopped")
			return
		case <-ticker.C:
			now := time.Now()
			if n := coord.ExpireStale(now); n > 0 {
				log.Printf("[matcher] sweeper: evicted %d stale participants", n)
			}
			if n := coord.ExpirePending(now); n > 0 {
				log.Printf("[matcher] sweeper: expired %d pending matches", n)
			}
		}
	}
}
