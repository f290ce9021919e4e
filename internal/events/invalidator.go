package events

import (
	"context"
	"log"
)

// Invalidator drops cached detail payloads for listings the sync pipeline
// has rewritten, so readers never see a full TTL window of stale detail
// after a sync.
type Invalidator struct {
	Pub     Publisher
	KeyFunc func(listingKey string) string
	Forget  func(ctx context.Context, key string) (bool, error)
}

func (i *Invalidator) Run(ctx context.Context) {
	sub := i.Pub.SubscribeListingUpdated()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			if i.Forget == nil || i.KeyFunc == nil {
				continue
			}
			if _, err := i.Forget(ctx, i.KeyFunc(evt.ListingKey)); err != nil {
				log.Printf("[WARN] detail cache invalidation failed for %s: %v", evt.ListingKey, err)
			}
		}
	}
}
