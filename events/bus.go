package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go-elife-client/models"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const TopicTransitions = "verification.transitions"

// Bus publishes verification transitions to in-process subscribers.
type Bus struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewBus(bufferSize int64) *Bus {
	logger := watermill.NewStdLogger(false, false)
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: bufferSize,
			// keeps transitions in order for a single subscriber
			BlockPublishUntilSubscriberAck: true,
		}, logger),
		topic: TopicTransitions,
	}
}

// Notify publishes the transition and waits until subscribers have taken it.
// Transitions published without a subscriber are dropped.
func (b *Bus) Notify(ctx context.Context, transition models.Transition) error {
	payload, err := json.Marshal(transition)
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("session_id", transition.SessionId)

	if err := b.pubSub.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("failed to publish transition: %w", err)
	}
	return nil
}

// Subscribe returns decoded transitions until ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan models.Transition, error) {
	messages, err := b.pubSub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.topic, err)
	}

	out := make(chan models.Transition)
	go func() {
		defer close(out)
		for msg := range messages {
			var transition models.Transition
			if err := json.Unmarshal(msg.Payload, &transition); err != nil {
				slog.Warn("Dropping malformed transition", "message_uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}

			// acked once handed over, so Notify returns only after delivery
			select {
			case out <- transition:
				msg.Ack()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
