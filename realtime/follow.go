package realtime

import (
	"context"
)

// Follow subscribes to topic, runs refresh once, and runs it again after
// every event until the returned cancel is called, ctx ends, or the
// subscription closes. cancel blocks until the follower goroutine has exited
// and must not be called from inside refresh.
func Follow(ctx context.Context, b Broker, topic string, refresh func(ctx context.Context)) (cancel func(), err error) {
	sub, err := b.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(ctx)
	refresh(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				// Collapse a burst into one refresh
				drain(sub.C)
				if ctx.Err() != nil {
					return
				}
				refresh(ctx)
			}
		}
	}()

	return func() {
		stop()
		<-done
	}, nil
}

func drain(c <-chan Event) {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
