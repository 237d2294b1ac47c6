// Package notify publishes realtime ticket notices for gate dashboards.
package notify

import (
	"context"
	"fmt"

	"ticket-gate/models"

	pubnub "github.com/pubnub/go/v7"
)

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
	Channel      string
}

// PubNub publishes notices on a single channel.
type PubNub struct {
	channel string
	send    func(channel string, message any) error
}

func NewPubNub(cfg Config) *PubNub {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	pn := pubnub.NewPubNub(pnCfg)

	return &PubNub{
		channel: cfg.Channel,
		send: func(channel string, message any) error {
			_, _, err := pn.Publish().
				Channel(channel).
				Message(message).
				Execute()
			return err
		},
	}
}

// Publish returns when the SDK call finishes or ctx is done, whichever comes
// first. An abandoned call runs until the SDK's own request timeout.
func (p *PubNub) Publish(ctx context.Context, notice models.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- p.send(p.channel, notice)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publishing %s to %s: %w", notice.Type, p.channel, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publishing %s to %s: %w", notice.Type, p.channel, ctx.Err())
	}
}

// Noop drops notices.
type Noop struct{}

func (Noop) Publish(context.Context, models.Notice) error { return nil }
