package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/sink"
)

// Reporter observes the create stage of a resource run
type Reporter interface {
	Start(resource string, total int)
	Step(outcome common.Outcome)
	Finish()
}

// Noop ignores every event
type Noop struct{}

func (Noop) Start(string, int)   {}
func (Noop) Step(common.Outcome) {}
func (Noop) Finish()             {}

// Bars renders one progress bar per resource
type Bars struct {
	mu  sync.Mutex
	p   *mpb.Progress
	bar *mpb.Bar
}

// NewBars creates a bar container writing to out
func NewBars(out io.Writer) *Bars {
	return &Bars{p: mpb.New(mpb.WithOutput(out), mpb.WithWidth(48))}
}

func (b *Bars) Start(resource string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar = b.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(resource, decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
	)
}

func (b *Bars) Step(common.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		b.bar.Increment()
	}
}

// Finish releases the current bar, aborting it if the run stopped early
func (b *Bars) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil && !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.bar = nil
}

// Wait blocks until every bar has been rendered for the last time
func (b *Bars) Wait() {
	b.p.Wait()
}

var (
	createdColor = color.New(color.FgGreen)
	skippedColor = color.New(color.FgYellow)
	failedColor  = color.New(color.FgRed, color.Bold)
)

// PrintSummary writes a one-line colored tally followed by failed entries
func PrintSummary(w io.Writer, s sink.Summary) {
	fmt.Fprintf(w, "%s: ", s.Resource)
	createdColor.Fprintf(w, "%d created", s.Created)
	fmt.Fprint(w, ", ")
	skippedColor.Fprintf(w, "%d skipped", s.Skipped)
	fmt.Fprint(w, ", ")
	failedColor.Fprintf(w, "%d failed", s.Failed)
	fmt.Fprintln(w)

	for _, e := range s.Entries {
		if e.Status != common.KindFailed.String() {
			continue
		}
		failedColor.Fprint(w, "  x ")
		fmt.Fprintf(w, "%s (%s): %s\n", e.Name, e.SourceID, e.Detail)
	}
}
