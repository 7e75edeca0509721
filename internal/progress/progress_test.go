package progress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/starexec/jobview/internal/logging"
)

type recordingReporter struct {
	updates []int64
}

func (r *recordingReporter) Start(int64, string) {}
func (r *recordingReporter) Update(n int64)      { r.updates = append(r.updates, n) }
func (r *recordingReporter) Finish()             {}
func (r *recordingReporter) Error(error)         {}

func TestProgressReaderReportsCumulativeBytes(t *testing.T) {
	rec := &recordingReporter{}
	pr := NewProgressReader(strings.NewReader(strings.Repeat("x", 10)), rec)

	buf := make([]byte, 4)
	for {
		_, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}

	if pr.BytesRead() != 10 {
		t.Errorf("BytesRead() = %d, want 10", pr.BytesRead())
	}
	last := rec.updates[len(rec.updates)-1]
	if last != 10 {
		t.Errorf("last update = %d, want 10", last)
	}
}

func TestLogProgressWritesStartAndFinish(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger("cli", nil)
	logger.SetOutput(&buf)

	p := NewLogProgress(logger, time.Hour)
	p.Start(100, "job 7 output")
	p.Update(40)
	p.Update(100)
	p.Error(errors.New("boom"))
	p.Finish()

	out := buf.String()
	for _, want := range []string{"download started", "download finished", "download failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "downloading") {
		t.Error("intermediate progress should be throttled by the interval")
	}
	if p.Current() != 100 {
		t.Errorf("Current() = %d, want 100", p.Current())
	}
}

func TestCLIProgressWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgress(&buf)
	p.Start(10, "download")
	p.Update(10)
	p.Finish()
	if buf.Len() == 0 {
		t.Error("expected progress bar output")
	}
}

func TestNewReporterWithoutTerminal(t *testing.T) {
	if _, ok := NewReporter(nil, nil).(*LogProgress); !ok {
		t.Error("NewReporter(nil) should fall back to log progress")
	}
}
