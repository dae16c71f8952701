package jobs

import "strings"

// ValidatePayload checks that a payload has the fields its handler cannot run without.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobCancellationMail:
		var p CancellationMailPayload
		switch v := payload.(type) {
		case CancellationMailPayload:
			p = v
		case *CancellationMailPayload:
			if v == nil {
				return ErrInvalidJobPayload
			}
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if p.Appointment.ID <= 0 || trim(p.Mail.To) == "" || trim(p.Mail.Template) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
