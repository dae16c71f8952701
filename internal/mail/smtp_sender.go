package mail

import (
	"context"
	"fmt"
	netmail "net/mail"

	"gopkg.in/gomail.v2"
)

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg Config) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.SSL = cfg.Secure

	return &SMTPSender{dialer: d, from: cfg.From}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	body, err := Render(msg.Template, msg.Context)
	if err != nil {
		return err
	}

	m, err := s.build(msg, body)
	if err != nil {
		return err
	}

	// gomail has no context support, so the dial runs aside and ctx decides how long we wait.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSender) build(msg Message, body string) (*gomail.Message, error) {
	from, err := netmail.ParseAddress(s.from)
	if err != nil {
		return nil, fmt.Errorf("%w: from %q: %v", ErrInvalidAddress, s.from, err)
	}
	to, err := netmail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("%w: to %q: %v", ErrInvalidAddress, msg.To, err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", from.Address, from.Name)
	m.SetAddressHeader("To", to.Address, to.Name)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", body)
	return m, nil
}
