package mail

import (
	"fmt"
	"log/slog"
)

// NewSender builds the configured transport behind a circuit breaker.
func NewSender(cfg Config, log *slog.Logger) (*ProtectedSender, error) {
	var inner Sender
	switch cfg.Driver {
	case "smtp":
		inner = NewSMTPSender(cfg)
	case "log", "":
		inner = NewLogSender(log)
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
	return NewProtectedSender(inner, ProtectedSenderConfig{}), nil
}
