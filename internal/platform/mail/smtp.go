// Package mail delivers transactional email over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPSender delivers mail through a plain SMTP relay such as Mailpit in
// development or a provider relay in production.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender constructs SMTPSender.
func NewSMTPSender(host string, port int, from string) (*SMTPSender, error) {
	if host == "" || port <= 0 {
		return nil, errors.New("mail: smtp host and port are required")
	}
	if from == "" {
		return nil, errors.New("mail: smtp from address is required")
	}
	return &SMTPSender{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		from: from,
	}, nil
}

// Send delivers a single message. The context is honoured up front only; the
// SMTP dialogue itself is bounded by the relay's own timeouts.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if s == nil {
		return errors.New("mail: sender not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.from, to, subject, body)
	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
