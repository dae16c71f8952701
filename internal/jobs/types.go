package jobs

type JobType string

const (
	JobCancellationMail JobType = "CancellationMail"
)

// IsValid reports whether t is a job type the worker knows how to run.
func (t JobType) IsValid() bool {
	switch t {
	case JobCancellationMail:
		return true
	default:
		return false
	}
}

func (t JobType) String() string { return string(t) }
