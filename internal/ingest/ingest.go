// Package ingest turns lines of external input into durable percepts. It runs
// beside the heartbeat and shares nothing with it but the percept log.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"mindloop/internal/logging"
	"mindloop/internal/types"
)

// TagCLI marks percepts read from the terminal.
const TagCLI = "cli"

// Recorder appends percepts to the durable log.
type Recorder interface {
	RecordPercept(source, content string, tags []string) (types.Percept, error)
}

// Ingestor reads one percept per non-blank line.
type Ingestor struct {
	recorder Recorder
	reader   io.Reader
	echo     io.Writer
	tags     []string
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithEcho writes a confirmation line to w for every recorded percept.
func WithEcho(w io.Writer) Option {
	return func(i *Ingestor) { i.echo = w }
}

// WithTags overrides the tags attached to each percept.
func WithTags(tags ...string) Option {
	return func(i *Ingestor) { i.tags = tags }
}

// New creates an ingestor reading from r.
func New(recorder Recorder, r io.Reader, opts ...Option) *Ingestor {
	i := &Ingestor{recorder: recorder, reader: r, tags: []string{TagCLI}}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IngestLine records raw as a user percept. Blank input is ignored and
// reports ok=false. quit and exit are recorded like any other line; they do
// not stop anything.
func (i *Ingestor) IngestLine(raw string) (p types.Percept, ok bool, err error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return types.Percept{}, false, nil
	}

	if isQuitWord(text) {
		logging.Ingest("quit word %q received; use Ctrl+C or wait for idle shutdown", text)
		i.printf("[CLI] Received '%s'. Press Ctrl+C to stop the loop.\n", text)
	}

	p, err = i.recorder.RecordPercept(types.SourceUser, text, append([]string{}, i.tags...))
	if err != nil {
		logging.Get(logging.CategoryIngest).Error("failed to record percept: %v", err)
		return types.Percept{}, false, fmt.Errorf("failed to record percept: %w", err)
	}
	logging.IngestDebug("recorded %s (%d chars)", p.ID, len(text))
	i.printf("[CLI] Recorded percept from user: %s\n", text)
	return p, true, nil
}

// Run reads lines until end of input or ctx is cancelled. Record failures are
// logged and skipped. Cancellation is observed between lines.
func (i *Ingestor) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(i.reader)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	logging.Ingest("ingestor started")
	for {
		select {
		case <-ctx.Done():
			logging.Ingest("ingestor stopped: %v", ctx.Err())
			return nil

		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-readErr:
				default:
				}
				if err != nil {
					return fmt.Errorf("input read failed: %w", err)
				}
				logging.Ingest("ingestor stopped: end of input")
				return nil
			}
			// Errors are already logged; keep reading.
			_, _, _ = i.IngestLine(line)
		}
	}
}

func (i *Ingestor) printf(format string, args ...any) {
	if i.echo != nil {
		fmt.Fprintf(i.echo, format, args...)
	}
}

func isQuitWord(s string) bool {
	switch strings.ToLower(s) {
	case "quit", "exit":
		return true
	}
	return false
}
