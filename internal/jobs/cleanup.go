package jobs

import (
	"context"
	"log"
	"time"

	"github.com/balejosg/openpath/internal/revocation"
)

// StartRevocationSweepJob periodically purges expired entries from the
// revocation store so its size tracks only live revocations. Backends
// that expire entries natively make Cleanup a no-op, which keeps the
// job harmless to run everywhere.
func StartRevocationSweepJob(ctx context.Context, interval time.Duration, store revocation.Store) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if err := store.Cleanup(tickCtx); err != nil {
					log.Printf("revocation sweep error: %v", err)
					cancel()
					continue
				}
				if size, err := store.Size(tickCtx); err == nil {
					log.Printf("revocation sweep done, %d live entries", size)
				}
				cancel()
			}
		}
	}()
}
