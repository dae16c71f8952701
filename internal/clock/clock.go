package clock

import "time"

// Clock reports the current instant. Rule checks read time through it so
// tests can pin "now".
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}
