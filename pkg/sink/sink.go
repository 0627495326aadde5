package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turnere/Migrator-Tools/pkg/common"
)

// Entry is the per-record line of a summary
type Entry struct {
	SourceID string `json:"sourceId" bson:"sourceId"`
	Name     string `json:"name" bson:"name"`
	Status   string `json:"status" bson:"status"`
	NewID    string `json:"newId,omitempty" bson:"newId,omitempty"`
	Reason   string `json:"reason,omitempty" bson:"reason,omitempty"`
	Detail   string `json:"detail,omitempty" bson:"detail,omitempty"`
	Attempts int    `json:"attempts,omitempty" bson:"attempts,omitempty"`
}

// Summary is the artifact of one run
type Summary struct {
	RunID      string    `json:"runId" bson:"runId"`
	Resource   string    `json:"resource" bson:"resource"`
	StartedAt  time.Time `json:"startedAt" bson:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" bson:"finishedAt"`
	Created    int       `json:"created" bson:"created"`
	Skipped    int       `json:"skipped" bson:"skipped"`
	Failed     int       `json:"failed" bson:"failed"`
	Entries    []Entry   `json:"entries" bson:"entries"`
}

// Total returns the number of recorded outcomes
func (s Summary) Total() int {
	return s.Created + s.Skipped + s.Failed
}

// DocumentID identifies the summary of one resource within a run
func (s Summary) DocumentID() string {
	return s.RunID + ":" + s.Resource
}

// Writer persists a finished summary
type Writer interface {
	Name() string
	Write(ctx context.Context, s Summary) error
}

// Sink accumulates outcomes for one resource run
type Sink struct {
	mu      sync.Mutex
	summary Summary
	writers []Writer
	closed  bool
}

// New creates a sink. An empty runID gets a random UUID.
func New(runID, resource string, writers ...Writer) *Sink {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Sink{
		summary: Summary{
			RunID:     runID,
			Resource:  resource,
			StartedAt: time.Now().UTC(),
			Entries:   []Entry{},
		},
		writers: writers,
	}
}

// Record adds the outcome of one source record
func (s *Sink) Record(sourceID, name string, o common.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch o.Kind {
	case common.KindCreated:
		s.summary.Created++
	case common.KindSkipped:
		s.summary.Skipped++
	default:
		s.summary.Failed++
	}
	s.summary.Entries = append(s.summary.Entries, Entry{
		SourceID: sourceID,
		Name:     name,
		Status:   o.Kind.String(),
		NewID:    o.NewID,
		Reason:   o.Reason,
		Detail:   o.Detail,
		Attempts: o.Attempts,
	})
}

// Summary returns a snapshot of the counts and entries so far
func (s *Sink) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.summary
	out.Entries = append([]Entry(nil), s.summary.Entries...)
	return out
}

// Close stamps the finish time and hands the summary to every writer. A
// failing writer does not stop the others; their errors are joined.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.summary.FinishedAt = time.Now().UTC()
	s.mu.Unlock()

	summary := s.Summary()
	var errs []error
	for _, w := range s.writers {
		if err := w.Write(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s writer: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}
