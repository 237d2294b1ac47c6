// Package mail delivers ticket emails over SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"time"

	"ticket-gate/models"
	"ticket-gate/utils"

	"github.com/pocketbase/pocketbase/tools/mailer"
)

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FromName    string
	MaxAttempts int
	Backoff     time.Duration
}

// SMTP sends messages through the PocketBase mailer. Transient failures are
// retried with exponential backoff; a run of failures opens the circuit
// breaker so a dead SMTP server fails fast.
type SMTP struct {
	client      mailer.Mailer
	from        mail.Address
	maxAttempts int
	backoff     time.Duration
	breaker     *utils.CircuitBreaker
}

func NewSMTP(cfg Config) *SMTP {
	client := &mailer.SMTPClient{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		// 465 is implicit TLS, 587 upgrades with STARTTLS
		TLS: cfg.Port == 465,
	}
	return newSMTP(client, cfg)
}

func newSMTP(client mailer.Mailer, cfg Config) *SMTP {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &SMTP{
		client:      client,
		from:        mail.Address{Name: cfg.FromName, Address: cfg.From},
		maxAttempts: attempts,
		backoff:     cfg.Backoff,
		breaker:     utils.NewCircuitBreaker("smtp", utils.WithTrip(5, 0.8), utils.WithTimeout(30*time.Second)),
	}
}

func (s *SMTP) Deliver(ctx context.Context, msg models.Message) error {
	_, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, s.sendWithRetry(ctx, msg)
	})
	return err
}

func (s *SMTP) sendWithRetry(ctx context.Context, msg models.Message) error {
	backOff := s.backoff

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.send(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		slog.Warn("smtp send failed", "to", msg.To, "attempt", attempt, "error", err)
		if attempt == s.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backOff):
			backOff *= 2
		}
	}

	return fmt.Errorf("smtp: %d attempts: %w", s.maxAttempts, err)
}

// send runs one attempt. The mailer has no context support, so the attempt is
// abandoned, not interrupted, when ctx ends.
func (s *SMTP) send(ctx context.Context, msg models.Message) error {
	m := &mailer.Message{
		From:              s.from,
		To:                []mail.Address{{Address: msg.To}},
		Subject:           msg.Subject,
		HTML:              msg.HTML,
		Attachments:       map[string]io.Reader{},
		InlineAttachments: map[string]io.Reader{},
	}
	for _, a := range msg.Attachments {
		if a.Inline {
			m.InlineAttachments[a.Filename] = bytes.NewReader(a.Content)
		} else {
			m.Attachments[a.Filename] = bytes.NewReader(a.Content)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- s.client.Send(m)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Noop accepts every message without sending it.
type Noop struct{}

func (Noop) Deliver(ctx context.Context, msg models.Message) error {
	slog.Debug("mail delivery disabled, dropping message", "to", msg.To, "subject", msg.Subject)
	return nil
}
