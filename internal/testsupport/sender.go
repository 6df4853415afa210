package testsupport

import (
	"context"
	"sync"

	"crmflow/internal/notifications"
)

// Delivery is one call observed by a RecordingSender.
type Delivery struct {
	Target  string
	Payload notifications.Payload
}

// RecordingSender captures deliveries. Err, when set, is returned from every
// Send; Block makes Send wait for context cancellation.
type RecordingSender struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error
	Block      bool
}

// Send implements notifications.Sender.
func (r *RecordingSender) Send(ctx context.Context, target string, p notifications.Payload) error {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, Delivery{Target: target, Payload: p})
	block, err := r.Block, r.Err
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// Deliveries returns a copy of the recorded calls.
func (r *RecordingSender) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Count returns the number of recorded calls.
func (r *RecordingSender) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}
