package mail

import (
	"context"
	"errors"
)

var (
	ErrUnknownTemplate = errors.New("unknown mail template")
	ErrInvalidAddress  = errors.New("invalid mail address")
)

// IsMessageError reports whether err comes from the message itself rather
// than the transport. Resending the same message cannot succeed.
func IsMessageError(err error) bool {
	return errors.Is(err, ErrUnknownTemplate) || errors.Is(err, ErrInvalidAddress)
}

// Message is a templated mail. Context feeds the template.
type Message struct {
	To       string
	Subject  string
	Template string
	Context  map[string]string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Driver string
	Host   string
	Port   int
	User   string
	Pass   string
	Secure bool
	From   string
}
