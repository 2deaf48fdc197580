package console

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeServer answers commands written to it by printing scripted lines on its
// output pipe, the way a game server echoes console results into its log.
type fakeServer struct {
	mu        sync.Mutex
	out       *io.PipeWriter
	responses map[string][]string
	commands  []string
}

func (f *fakeServer) Write(p []byte) (int, error) {
	cmd := strings.TrimSpace(string(p))
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	lines := f.responses[cmd]
	f.mu.Unlock()

	go func() {
		for _, line := range lines {
			_, _ = io.WriteString(f.out, line+"\n")
		}
	}()
	return len(p), nil
}

func (f *fakeServer) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func startConsole(t *testing.T, responses map[string][]string) (*Console, *fakeServer, context.CancelFunc) {
	t.Helper()
	r, w := io.Pipe()
	srv := &fakeServer{out: w, responses: responses}
	c := New(NewReaderSource("test", r), srv, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})
	return c, srv, cancel
}

func fastOptions() QueryOptions {
	return QueryOptions{Timeout: 2 * time.Second, Idle: 50 * time.Millisecond}
}

func TestConsole_QueryFlat(t *testing.T) {
	c, srv, _ := startConsole(t, map[string][]string{
		"GetAll Row": {
			"[2022.04.23-21.43.36:264][474]LogConsoleCmd: GetAll Row",
			"[2022.04.23-21.43.36:264][474]0) Row a = x",
			"[2022.04.23-21.43.36:264][474]1) Row b = y",
		},
	})

	matches, err := c.Query(context.Background(), "GetAll Row", testRowPattern, fastOptions())
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Group("name"))
	assert.Equal(t, "y", matches[1].Group("value"))
	assert.Equal(t, []string{"GetAll Row"}, srv.Commands())
}

func TestConsole_QueryNested(t *testing.T) {
	c, _, _ := startConsole(t, map[string][]string{
		"GetAll Header": {
			"0) Header s1 =",
			"\t0: 0",
			"\t1: 9",
			"1) Header s2 =",
			"\t0: 1",
		},
	})

	groups, err := c.QueryNested(context.Background(), "GetAll Header", testHeaderPattern, testChildPattern, fastOptions())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Children, 2)
	assert.Len(t, groups[1].Children, 1)
}

func TestConsole_QueryTimeoutReturnsEmpty(t *testing.T) {
	c, _, _ := startConsole(t, nil)

	start := time.Now()
	matches, err := c.Query(context.Background(), "GetAll Nothing", testRowPattern, QueryOptions{
		Timeout: 100 * time.Millisecond,
		Idle:    20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "idle must not fire before the first match")
}

func TestConsole_ConcurrentQueriesKeepTheirOwnLines(t *testing.T) {
	c, _, _ := startConsole(t, map[string][]string{
		"GetAll Row":    {"0) Row a = x", "1) Row b = y"},
		"GetAll Header": {"0) Header s1 =", "\t0: 3"},
	})

	var wg sync.WaitGroup
	var rows []Match
	var groups []Group
	var rowErr, groupErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		rows, rowErr = c.Query(context.Background(), "GetAll Row", testRowPattern, fastOptions())
	}()
	go func() {
		defer wg.Done()
		groups, groupErr = c.QueryNested(context.Background(), "GetAll Header", testHeaderPattern, testChildPattern, fastOptions())
	}()
	wg.Wait()

	require.NoError(t, rowErr)
	require.NoError(t, groupErr)
	assert.Len(t, rows, 2)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Children, 1)
}

func TestConsole_SameCommandQueriesDoNotShareAnswers(t *testing.T) {
	c, srv, _ := startConsole(t, map[string][]string{
		"GetAll Row": {"0) Row a = x", "1) Row b = y"},
	})

	const callers = 3
	var wg sync.WaitGroup
	results := make([][]Match, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Query(context.Background(), "GetAll Row", testRowPattern, fastOptions())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 2, "caller %d collected another caller's rows", i)
	}
	assert.Len(t, srv.Commands(), callers, "every caller still sends its own command")
}

func TestConsole_SameCommandWaitCountsAgainstTimeout(t *testing.T) {
	c, srv, _ := startConsole(t, nil)

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _ = c.Query(context.Background(), "GetAll Row", testRowPattern, QueryOptions{Timeout: 300 * time.Millisecond})
	}()
	require.Eventually(t, func() bool { return len(srv.Commands()) == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	matches, err := c.Query(context.Background(), "GetAll Row", testRowPattern, QueryOptions{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Len(t, srv.Commands(), 1, "the queued query gave up before writing")
	<-first
}

func TestConsole_QueryContextCancelled(t *testing.T) {
	c, _, _ := startConsole(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Query(ctx, "GetAll Row", testRowPattern, fastOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsole_QueryAfterCloseFails(t *testing.T) {
	r, w := io.Pipe()
	srv := &fakeServer{out: w}
	c := New(NewReaderSource("test", r), srv, zap.NewNop())

	done := make(chan struct{})
	go func() {
		_ = c.Run(context.Background())
		close(done)
	}()

	require.NoError(t, w.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("console did not stop after source closed")
	}

	_, err := c.Query(context.Background(), "GetAll Row", testRowPattern, fastOptions())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConsole_ExecWritesOneLine(t *testing.T) {
	var buf strings.Builder
	c := New(NewReaderSource("test", strings.NewReader("")), &buf, zap.NewNop())

	require.NoError(t, c.Exec("GetAll BP_FigureV2_C bIsDead"))
	assert.Equal(t, "GetAll BP_FigureV2_C bIsDead\n", buf.String())
}
