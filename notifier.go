package wbcache

import "context"

// notifier is a one-shot, multi-subscriber broadcast: it delivers the
// outcome of a single in-flight fetch to every attached waiter exactly once,
// then stays closed forever. It plays the same role here that the
// deliverOnce/deliveredC pair plays in a single-chunk fetcher: many
// goroutines can wait on it concurrently, and the first (and only) settle
// wakes all of them.
type notifier[V any] struct {
	done  chan struct{}
	value *Handle[V]
	err   error
}

func newNotifier[V any]() *notifier[V] {
	return &notifier[V]{done: make(chan struct{})}
}

// settle delivers the fetch outcome to every waiter and closes the
// notifier. It must be called exactly once.
func (n *notifier[V]) settle(h *Handle[V], err error) {
	n.value = h
	n.err = err
	close(n.done)
}

// wait blocks until the notifier settles or ctx is cancelled. On a settled
// value it returns a freshly acquired reference, so each waiter owns its own
// Handle that must be released independently.
func (n *notifier[V]) wait(ctx context.Context) (*Handle[V], error) {
	select {
	case <-n.done:
		switch {
		case n.err != nil:
			return nil, n.err
		case n.value == nil:
			return nil, ErrProducerVanished
		default:
			return n.value.acquire(), nil
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
