package console

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
)

// Source produces raw server output lines.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Run calls emit for every line until the source ends or ctx is done.
	Run(ctx context.Context, emit func(line string)) error
}

// ReaderSource reads lines from a stream such as the server process stdout.
type ReaderSource struct {
	name string
	r    io.Reader
}

// NewReaderSource wraps r. The name is used for logging only.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

// Name implements Source.
func (s *ReaderSource) Name() string { return s.name }

// Run implements Source. The scan loop runs on its own goroutine so a blocked
// read does not hold up cancellation.
func (s *ReaderSource) Run(ctx context.Context, emit func(string)) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(s.r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errCh <- nil
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			emit(line)
		case err := <-errCh:
			return err
		}
	}
}

// TailSource follows a server log file, surviving rotation.
type TailSource struct {
	path string
}

// NewTailSource follows path starting at its current end.
func NewTailSource(path string) *TailSource {
	return &TailSource{path: path}
}

// Name implements Source.
func (s *TailSource) Name() string { return "tail:" + s.path }

// Run implements Source.
func (s *TailSource) Run(ctx context.Context, emit func(string)) error {
	t, err := tail.TailFile(s.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", s.path, err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return fmt.Errorf("tail %s: %w", s.path, line.Err)
			}
			emit(line.Text)
		}
	}
}
