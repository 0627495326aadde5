package progress

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/sink"
)

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	s := sink.New("run-1", "forms")
	s.Record("1", "A", common.Created("101"))
	s.Record("2", "B", common.Skipped(common.ReasonDuplicate))
	s.Record("3", "C", common.Failed("status 400: bad"))

	var buf bytes.Buffer
	PrintSummary(&buf, s.Summary())
	assert.Equal(t, "forms: 1 created, 1 skipped, 1 failed\n  x C (3): status 400: bad\n", buf.String())
}

func TestBarsCompleteAndAbort(t *testing.T) {
	var buf bytes.Buffer
	bars := NewBars(&buf)

	bars.Start("forms", 2)
	bars.Step(common.Created("1"))
	bars.Step(common.Created("2"))
	bars.Finish()

	bars.Start("emails", 3)
	bars.Step(common.Created("1"))
	bars.Finish()

	bars.Wait()
	assert.Nil(t, bars.bar)
}

func TestNoopSatisfiesReporter(t *testing.T) {
	var r Reporter = Noop{}
	r.Start("x", 1)
	r.Step(common.Created("1"))
	r.Finish()
}
