package services

import (
	"context"
	"time"

	"fitchallenge/realtime"
	"fitchallenge/utils"

	"go.uber.org/zap"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// publish notifies subscribers after a commit. A failed publish only delays
// the next refresh, so it is logged and not returned.
func publish(ctx context.Context, broker realtime.Broker, topic string, ev realtime.Event) {
	if broker == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = utcNow()
	}
	if err := broker.Publish(context.WithoutCancel(ctx), topic, ev); err != nil {
		utils.Logger.Warn("publish failed",
			zap.String("topic", topic), zap.String("type", ev.Type), zap.Error(err))
	}
}
