package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Per-query line buffer. A query that falls this far behind loses lines,
	// which downstream validation treats like a timeout.
	watcherBuffer = 1024
)

// ErrClosed is returned by queries issued after the line source has ended.
var ErrClosed = errors.New("console closed")

// Querier issues console commands and collects the lines that answer them.
type Querier interface {
	Query(ctx context.Context, command string, pattern *regexp.Regexp, opts QueryOptions) ([]Match, error)
	QueryNested(ctx context.Context, command string, header, child *regexp.Regexp, opts QueryOptions) ([]Group, error)
}

// watcher receives every stripped line while its query is in flight.
type watcher struct {
	id    string
	lines chan string
}

// Console multiplexes one server output stream across concurrent queries.
type Console struct {
	logger *zap.Logger
	source Source

	writeMu  sync.Mutex
	commands io.Writer

	mu       sync.RWMutex
	watchers map[string]*watcher

	// One query per command at a time: identical commands print identical
	// lines, which concurrent watchers could not tell apart.
	cmdMu    sync.Mutex
	commandQ map[string]chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Console reading from source and writing commands to commands.
func New(source Source, commands io.Writer, logger *zap.Logger) *Console {
	return &Console{
		logger:   logger.Named("console"),
		source:   source,
		commands: commands,
		watchers: make(map[string]*watcher),
		commandQ: make(map[string]chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run pumps the source until it ends or ctx is cancelled. Blocks.
// Once Run returns, in-flight and future queries fail with ErrClosed.
func (c *Console) Run(ctx context.Context) error {
	c.logger.Info("Starting console reader", zap.String("source", c.source.Name()))
	defer c.close()

	err := c.source.Run(ctx, c.dispatch)
	if err != nil && ctx.Err() == nil {
		c.logger.Error("Console source failed", zap.Error(err))
		return fmt.Errorf("console source %s: %w", c.source.Name(), err)
	}
	c.logger.Info("Console reader stopped")
	return nil
}

func (c *Console) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// dispatch broadcasts one raw line to every in-flight query.
func (c *Console) dispatch(raw string) {
	consoleLinesTotal.Inc()
	line := StripPrefix(raw)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, w := range c.watchers {
		select {
		case w.lines <- line:
		default:
			consoleDroppedLinesTotal.Inc()
			c.logger.Warn("Query buffer full, dropping line", zap.String("query", w.id))
		}
	}
}

func (c *Console) register() *watcher {
	w := &watcher{id: uuid.NewString(), lines: make(chan string, watcherBuffer)}
	c.mu.Lock()
	c.watchers[w.id] = w
	c.mu.Unlock()
	return w
}

func (c *Console) unregister(w *watcher) {
	c.mu.Lock()
	delete(c.watchers, w.id)
	c.mu.Unlock()
}

// Exec writes a single command line to the server.
func (c *Console) Exec(command string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.commands, command+"\n"); err != nil {
		return fmt.Errorf("write command %q: %w", command, err)
	}
	return nil
}

// Query writes command and collects lines matching pattern.
func (c *Console) Query(ctx context.Context, command string, pattern *regexp.Regexp, opts QueryOptions) ([]Match, error) {
	fc := &flatCollector{pattern: pattern, opts: opts}
	err := c.run(ctx, "flat", command, opts, fc)
	return fc.matches, err
}

// QueryNested writes command and collects header matches with their children.
func (c *Console) QueryNested(ctx context.Context, command string, header, child *regexp.Regexp, opts QueryOptions) ([]Group, error) {
	nc := &nestedCollector{header: header, child: child, opts: opts}
	err := c.run(ctx, "nested", command, opts, nc)
	return nc.groups, err
}

// slot returns the semaphore serializing queries that share command.
func (c *Console) slot(command string) chan struct{} {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	sem, ok := c.commandQ[command]
	if !ok {
		sem = make(chan struct{}, 1)
		c.commandQ[command] = sem
	}
	return sem
}

// run waits for any in-flight query with the same command, then registers a
// watcher before writing the command so no answer line is missed. Time spent
// waiting counts against opts.Timeout.
func (c *Console) run(ctx context.Context, mode, command string, opts QueryOptions, col collector) error {
	start := time.Now()
	defer func() {
		consoleQueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultQueryOptions().Timeout
	}

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	sem := c.slot(command)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case <-deadline.C:
		consoleQueuedTimeoutsTotal.Inc()
		c.logger.Debug("Query timed out waiting for the same command", zap.String("command", command))
		return nil
	}
	defer func() { <-sem }()

	w := c.register()
	defer c.unregister(w)

	if err := c.Exec(command); err != nil {
		return err
	}

	var idle *time.Timer
	var idleC <-chan time.Time
	defer func() {
		if idle != nil {
			idle.Stop()
		}
	}()

	matched := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case <-deadline.C:
			c.logger.Debug("Query timed out",
				zap.String("query", w.id),
				zap.String("command", command),
				zap.Int("matched", matched),
			)
			return nil
		case <-idleC:
			return nil
		case line := <-w.lines:
			ok, done := col.feed(line)
			if !ok {
				continue
			}
			matched++
			if done {
				return nil
			}
			if opts.Idle > 0 {
				if idle == nil {
					idle = time.NewTimer(opts.Idle)
					idleC = idle.C
				} else {
					idle.Reset(opts.Idle)
				}
			}
		}
	}
}
