package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to      string
	subject string
	body    string
	err     error
	calls   int
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.calls++
	s.to = to
	s.subject = subject
	s.body = body
	return s.err
}

func TestSendEmailHandlerDeliversPayload(t *testing.T) {
	sender := &recordingSender{}
	handler := NewSendEmailHandler(sender)

	task, err := NewSendEmailTask(SendEmailPayload{
		To:      "admin@stockpile.local",
		Subject: "Low stock: WID-001",
		Body:    "Product WID-001 - Widget has only 3 units. Minimum required: 5.",
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 1, sender.calls)
	require.Equal(t, "admin@stockpile.local", sender.to)
	require.Equal(t, "Low stock: WID-001", sender.subject)
	require.Contains(t, sender.body, "Minimum required: 5")
}

func TestSendEmailHandlerPropagatesSenderError(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay unavailable")}
	handler := NewSendEmailHandler(sender)

	task, err := NewSendEmailTask(SendEmailPayload{To: "admin@stockpile.local"})
	require.NoError(t, err)

	require.Error(t, handler(context.Background(), task))
}

func TestSendEmailHandlerSkipsMalformedPayload(t *testing.T) {
	sender := &recordingSender{}
	handler := NewSendEmailHandler(sender)

	err := handler(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, sender.calls)
}

func TestSendEmailHandlerSkipsMissingRecipient(t *testing.T) {
	sender := &recordingSender{}
	handler := NewSendEmailHandler(sender)

	task, err := NewSendEmailTask(SendEmailPayload{Subject: "no recipient"})
	require.NoError(t, err)

	require.ErrorIs(t, handler(context.Background(), task), asynq.SkipRetry)
	require.Zero(t, sender.calls)
}
