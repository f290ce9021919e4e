package events

import "context"

// ListingUpdated is published after the sync orchestrator writes a record.
type ListingUpdated struct {
	ListingKey string
}

type Publisher interface {
	PublishListingUpdated(ctx context.Context, evt ListingUpdated)
	SubscribeListingUpdated() <-chan ListingUpdated
}

type inMemory struct{ ch chan ListingUpdated }

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan ListingUpdated, buffer)}
}

func (m *inMemory) PublishListingUpdated(_ context.Context, evt ListingUpdated) {
	select {
	case m.ch <- evt:
	default: // drop if saturated; invalidation is best-effort
	}
}

func (m *inMemory) SubscribeListingUpdated() <-chan ListingUpdated { return m.ch }
