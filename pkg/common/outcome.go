package common

import (
	"fmt"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// Kind tags an Outcome
type Kind int

const (
	KindCreated Kind = iota + 1
	KindSkipped
	KindFailed
)

// String returns the status label used in summaries
func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	ReasonDuplicate = "duplicate"
	ReasonDryRun    = "dry-run"
	ReasonExcluded  = "excluded"
)

// Outcome is the result of creating one record. It is a value type; the
// With* helpers return modified copies.
type Outcome struct {
	Kind     Kind
	NewID    string
	Reason   string
	Detail   string
	Attempts int
	Status   int
	Body     *record.Record // response body of a created resource, when it was JSON
}

// Created reports a resource created under newID
func Created(newID string) Outcome {
	return Outcome{Kind: KindCreated, NewID: newID}
}

// Skipped reports a record that was intentionally not created
func Skipped(reason string) Outcome {
	return Outcome{Kind: KindSkipped, Reason: reason}
}

// Failed reports a record that could not be created
func Failed(detail string) Outcome {
	return Outcome{Kind: KindFailed, Detail: detail}
}

// WithAttempts returns a copy carrying the number of requests made
func (o Outcome) WithAttempts(n int) Outcome {
	o.Attempts = n
	return o
}

// WithStatus returns a copy carrying the last HTTP status seen
func (o Outcome) WithStatus(status int) Outcome {
	o.Status = status
	return o
}

// WithBody returns a copy carrying the decoded response body
func (o Outcome) WithBody(body *record.Record) Outcome {
	o.Body = body
	return o
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindCreated:
		return fmt.Sprintf("created{%s}", o.NewID)
	case KindSkipped:
		return fmt.Sprintf("skipped{%s}", o.Reason)
	case KindFailed:
		return fmt.Sprintf("failed{%s}", o.Detail)
	default:
		return "unknown"
	}
}
