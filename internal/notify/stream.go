package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"ticket-gate/models"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Stream appends notices as JSON messages to a topic, a Redis stream in
// production, for consumers outside the gate.
type Stream struct {
	publisher message.Publisher
	topic     string
}

func NewRedisStream(client *redis.Client, topic string) (*Stream, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, watermill.NewStdLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("creating stream publisher: %w", err)
	}
	return NewStream(publisher, topic), nil
}

func NewStream(publisher message.Publisher, topic string) *Stream {
	return &Stream{publisher: publisher, topic: topic}
}

func (s *Stream) Publish(ctx context.Context, notice models.Notice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encoding %s notice: %w", notice.Type, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", string(notice.Type))
	msg.Metadata.Set("event_id", notice.EventID)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		return fmt.Errorf("publishing %s to stream %s: %w", notice.Type, s.topic, err)
	}
	return nil
}

func (s *Stream) Close() error {
	return s.publisher.Close()
}

type Publisher interface {
	Publish(ctx context.Context, notice models.Notice) error
}

// Multi publishes to every sink concurrently. One failing sink does not stop
// the others; the first error is returned.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, notice models.Notice) error {
	var g errgroup.Group
	for _, p := range m {
		g.Go(func() error {
			return p.Publish(ctx, notice)
		})
	}
	return g.Wait()
}
