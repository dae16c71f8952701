package mail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogSender renders the message and logs it instead of delivering it.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("MAIL_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("MAIL_FAIL") == "1" {
		return fmt.Errorf("mail provider down (simulated)")
	}

	body, err := Render(msg.Template, msg.Context)
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "mail.sent",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
		"bytes", len(body),
	)
	return nil
}
