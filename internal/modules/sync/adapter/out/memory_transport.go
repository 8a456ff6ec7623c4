package out

import (
	"context"
	"fmt"
	"sync"

	syncout "focuskit/internal/modules/sync/port/out"
)

// MemoryHub connects transports inside one process. Publish delivers
// synchronously to every other connected transport.
type MemoryHub struct {
	mu        sync.RWMutex
	endpoints map[*MemoryTransport]struct{}
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{endpoints: map[*MemoryTransport]struct{}{}}
}

func (h *MemoryHub) Connect() *MemoryTransport {
	t := &MemoryTransport{hub: h}
	h.mu.Lock()
	h.endpoints[t] = struct{}{}
	h.mu.Unlock()
	return t
}

func (h *MemoryHub) peers(except *MemoryTransport) []*MemoryTransport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peers := make([]*MemoryTransport, 0, len(h.endpoints))
	for endpoint := range h.endpoints {
		if endpoint != except {
			peers = append(peers, endpoint)
		}
	}
	return peers
}

func (h *MemoryHub) detach(t *MemoryTransport) {
	h.mu.Lock()
	delete(h.endpoints, t)
	h.mu.Unlock()
}

type MemoryTransport struct {
	hub *MemoryHub

	mu      sync.RWMutex
	deliver func([]byte)
	closed  bool
}

func (t *MemoryTransport) Publish(_ context.Context, payload []byte) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return fmt.Errorf("memory transport closed")
	}
	for _, peer := range t.hub.peers(t) {
		peer.receive(append([]byte(nil), payload...))
	}
	return nil
}

func (t *MemoryTransport) Listen(ctx context.Context, deliver func([]byte)) error {
	t.mu.Lock()
	t.deliver = deliver
	t.mu.Unlock()
	go func() {
		<-ctx.Done()
		t.mu.Lock()
		t.deliver = nil
		t.mu.Unlock()
	}()
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.deliver = nil
	t.mu.Unlock()
	t.hub.detach(t)
	return nil
}

func (t *MemoryTransport) receive(payload []byte) {
	t.mu.RLock()
	deliver := t.deliver
	t.mu.RUnlock()
	if deliver != nil {
		deliver(payload)
	}
}

var _ syncout.Transport = (*MemoryTransport)(nil)
