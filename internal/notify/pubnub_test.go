package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticket-gate/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubNub_Publish(t *testing.T) {
	var gotChannel string
	var gotMessage any

	p := &PubNub{
		channel: "ticket-events",
		send: func(channel string, message any) error {
			gotChannel = channel
			gotMessage = message
			return nil
		},
	}

	notice := models.Notice{
		Type:     models.NoticeRedeemed,
		TicketID: "t1",
		OrderID:  "o1",
		EventID:  "e1",
		At:       time.Now(),
	}
	require.NoError(t, p.Publish(context.Background(), notice))

	assert.Equal(t, "ticket-events", gotChannel)
	assert.Equal(t, notice, gotMessage)
}

func TestPubNub_PublishError(t *testing.T) {
	p := &PubNub{
		channel: "ticket-events",
		send: func(string, any) error {
			return errors.New("403 forbidden")
		},
	}

	err := p.Publish(context.Background(), models.Notice{Type: models.NoticeIssued})
	assert.ErrorContains(t, err, "ticket_issued")
	assert.ErrorContains(t, err, "403 forbidden")
}

func TestPubNub_PublishHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := &PubNub{
		channel: "ticket-events",
		send: func(string, any) error {
			<-release
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, models.Notice{Type: models.NoticeRedeemed})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
