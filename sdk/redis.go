package sdk

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/tlfsid"
)

// redisRelay mirrors a document's locally joined deltas onto a Redis
// pub/sub channel, the cross-process half of the fan-out the in-memory
// broadcaster only does within one process: one channel per document,
// one subscriber goroutine per Subscribe call, payloads carried as
// EncodeCausal/DecodeCausal's own wire format rather than JSON.
type redisRelay struct {
	client *redis.Client
}

func newRedisRelay(client *redis.Client) *redisRelay {
	return &redisRelay{client: client}
}

func topicFor(doc tlfsid.DocID) string {
	return "tlfs/doc/" + doc.String()
}

// publish mirrors c onto doc's channel for any other process subscribed
// to it. Failures are logged, not returned: a relay outage must never
// block a local join.
func (r *redisRelay) publish(doc tlfsid.DocID, c causal.Causal) {
	if r == nil || c.IsEmpty() {
		return
	}
	payload, err := causal.EncodeCausal(c)
	if err != nil {
		logger.Warnw("encode delta for redis relay failed", "doc", doc.String(), "err", err)
		return
	}
	if err := r.client.Publish(context.Background(), topicFor(doc), payload).Err(); err != nil {
		logger.Warnw("publish delta to redis failed", "doc", doc.String(), "err", err)
	}
}

// subscribe streams every delta another process publishes for doc until
// ctx is canceled or the returned cancel func is called.
func (r *redisRelay) subscribe(ctx context.Context, doc tlfsid.DocID) (<-chan causal.Causal, func(), error) {
	sub := r.client.Subscribe(ctx, topicFor(doc))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", topicFor(doc), err)
	}

	out := make(chan causal.Causal, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c, err := causal.DecodeCausal([]byte(msg.Payload))
				if err != nil {
					logger.Warnw("decode delta from redis relay failed", "doc", doc.String(), "err", err)
					continue
				}
				select {
				case out <- c:
				default:
					logger.Warnw("dropping remote delta notification for slow subscriber", "doc", doc.String())
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		sub.Close()
	}
	return out, cancel, nil
}
