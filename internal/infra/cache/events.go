package cache

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

// PurchaseChannel carries completed purchase events.
const PurchaseChannel = "melodify:purchases"

// PurchaseEvent announces that a purchase was completed.
type PurchaseEvent struct {
	PurchaseID string `json:"purchase_id"`
	UserID     string `json:"user_id,omitempty"`
	SongID     string `json:"song_id,omitempty"`
}

// Events publishes and receives purchase events over Redis pub/sub.
type Events struct {
	rdb *redis.Client
}

// NewEvents creates an event channel on rdb.
func NewEvents(rdb *redis.Client) *Events {
	return &Events{rdb: rdb}
}

// PublishPurchase announces a completed purchase.
func (e *Events) PublishPurchase(ctx context.Context, ev PurchaseEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to encode purchase event")
	}
	return errors.Wrap(e.rdb.Publish(ctx, PurchaseChannel, data).Err(), "failed to publish purchase event")
}

// SubscribePurchases calls fn for every purchase event until ctx is done.
// It returns once the subscription is established.
func (e *Events) SubscribePurchases(ctx context.Context, fn func(PurchaseEvent)) error {
	sub := e.rdb.Subscribe(ctx, PurchaseChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrap(err, "failed to subscribe to purchase events")
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev PurchaseEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					zlog.Warn().Err(err).Msg("cache: invalid purchase event")
					continue
				}
				fn(ev)
			}
		}
	}()
	return nil
}
