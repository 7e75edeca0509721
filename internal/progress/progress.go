// Package progress reports the progress of job archive downloads, as a bar on
// a terminal and as log lines elsewhere.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/starexec/jobview/internal/logging"
)

// Reporter receives progress for one transfer.
// total is -1 when the server did not send a length.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
}

// NewReporter returns a progress bar when out is a terminal and a log-based
// reporter otherwise.
func NewReporter(out *os.File, logger *logging.Logger) Reporter {
	if out != nil && term.IsTerminal(int(out.Fd())) {
		return NewCLIProgress(out)
	}
	return NewLogProgress(logger, 10*time.Second)
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter writing to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// LogProgress logs progress at most once per interval.
type LogProgress struct {
	logger   *logging.Logger
	interval time.Duration

	mu          sync.Mutex
	description string
	total       int64
	current     int64
	started     time.Time
	lastLog     time.Time
}

// NewLogProgress creates a reporter that logs through logger.
func NewLogProgress(logger *logging.Logger, interval time.Duration) *LogProgress {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogProgress{logger: logger, interval: interval}
}

func (p *LogProgress) Start(total int64, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.description = description
	p.started = time.Now()
	p.lastLog = p.started
	p.logger.Info().Str("what", description).Int64("bytes_total", total).Msg("download started")
}

func (p *LogProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	if time.Since(p.lastLog) < p.interval {
		return
	}
	p.lastLog = time.Now()
	p.logger.Info().Str("what", p.description).Int64("bytes", current).Int64("bytes_total", p.total).Msg("downloading")
}

func (p *LogProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Info().
		Str("what", p.description).
		Int64("bytes", p.current).
		Dur("elapsed", time.Since(p.started)).
		Msg("download finished")
}

func (p *LogProgress) Error(err error) {
	if err != nil {
		p.logger.Error().Err(err).Str("what", p.description).Msg("download failed")
	}
}

// Current returns the last reported position.
func (p *LogProgress) Current() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	current  int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, reporter Reporter) *ProgressReader {
	return &ProgressReader{reader: reader, reporter: reporter}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	pr.reporter.Update(pr.current)
	return n, err
}

// BytesRead returns how many bytes have passed through the reader.
func (pr *ProgressReader) BytesRead() int64 {
	return pr.current
}
