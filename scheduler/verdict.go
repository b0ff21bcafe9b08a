package scheduler

import "reminder-server/models"

// Reason explains why a reminder cannot be scheduled.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidDate
	ReasonAlreadyExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "ok"
	case ReasonInvalidDate:
		return "invalid date"
	case ReasonAlreadyExpired:
		return "already expired"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of CanRegister.
type Verdict struct {
	Reason Reason
}

func (v Verdict) OK() bool { return v.Reason == ReasonNone }

// Err maps a rejection to its models error, nil when accepted.
func (v Verdict) Err() error {
	switch v.Reason {
	case ReasonNone:
		return nil
	case ReasonInvalidDate:
		return models.ErrInvalidDate
	default:
		return models.ErrAlreadyExpired
	}
}
