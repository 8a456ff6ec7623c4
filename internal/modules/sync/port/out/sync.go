package out

import "context"

// Transport moves opaque envelopes between surfaces. Delivery may drop,
// duplicate or reorder messages; the bridge tolerates all three.
type Transport interface {
	Publish(ctx context.Context, payload []byte) error
	// Listen starts delivering inbound payloads to deliver until ctx is done
	// or the transport is closed. It returns once the subscription is live.
	Listen(ctx context.Context, deliver func([]byte)) error
	Close() error
}
