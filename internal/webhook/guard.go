// Package webhook receives payment-provider callbacks and guarantees that a
// payment event triggers fulfillment exactly once, however many times the
// provider delivers it.
package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/kv"
)

const defaultMarkerTTL = 24 * time.Hour

// Guard is the idempotency check over the marker store. The marker write is
// an atomic put-if-absent, so two concurrent deliveries of the same event
// cannot both win.
type Guard struct {
	markers   kv.Markers
	markerTTL time.Duration
}

// NewGuard creates a Guard. A zero ttl selects 24h, comfortably longer than
// any payment provider's redelivery horizon.
func NewGuard(markers kv.Markers, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = defaultMarkerTTL
	}
	return &Guard{markers: markers, markerTTL: ttl}
}

// ShouldProcess reports whether this delivery is the first for the
// (eventType, paymentID) pair. On marker-store failure it returns false:
// skipping a delivery is recoverable (the provider redelivers, the sweep
// refunds), double fulfillment is not.
func (g *Guard) ShouldProcess(ctx context.Context, eventType, paymentID string) bool {
	key := "wh:" + eventType + ":" + paymentID
	first, err := g.markers.PutIfAbsent(ctx, key, g.markerTTL)
	if err != nil {
		zap.L().Error("webhook: marker store unavailable, dropping delivery",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return false
	}
	return first
}
