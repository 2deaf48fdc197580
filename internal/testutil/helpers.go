// Package testutil provides shared test helpers for the ondeath project.
// Import this in test files to avoid duplicating console scripts, table
// fixtures and recording subscribers.
package testutil

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/potooio/ondeath/internal/console"
	"github.com/potooio/ondeath/internal/types"
)

const level = "/Game/Maps/Plate/Plate.Plate:PersistentLevel."

// ScriptedConsole is a console.Querier that answers each command with a fixed
// set of output lines. Lines go through the same extraction as a live console.
type ScriptedConsole struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     []string
	err       error
}

// NewScriptedConsole returns a console with no scripted responses.
func NewScriptedConsole() *ScriptedConsole {
	return &ScriptedConsole{responses: make(map[string][]string)}
}

// Set replaces the lines returned for command.
func (s *ScriptedConsole) Set(command string, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[command] = lines
}

// SetError makes every subsequent query fail with err.
func (s *ScriptedConsole) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the commands issued so far.
func (s *ScriptedConsole) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *ScriptedConsole) record(command string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, command)
	return s.responses[command], s.err
}

// Query implements console.Querier.
func (s *ScriptedConsole) Query(ctx context.Context, command string, pattern *regexp.Regexp, opts console.QueryOptions) ([]console.Match, error) {
	lines, err := s.record(command)
	if err != nil {
		return nil, err
	}
	return console.Collect(lines, pattern, opts), nil
}

// QueryNested implements console.Querier.
func (s *ScriptedConsole) QueryNested(ctx context.Context, command string, header, child *regexp.Regexp, opts console.QueryOptions) ([]console.Group, error) {
	lines, err := s.record(command)
	if err != nil {
		return nil, err
	}
	return console.CollectNested(lines, header, child, opts), nil
}

// EchoServer stands in for a live game server behind a console.Console. Each
// command written to it is answered by printing its scripted lines on the
// reader returned from NewEchoServer.
type EchoServer struct {
	out *io.PipeWriter

	mu        sync.Mutex
	responses map[string][]string
	commands  []string
}

// NewEchoServer returns the server and the output stream to read from.
func NewEchoServer() (*EchoServer, io.Reader) {
	r, w := io.Pipe()
	return &EchoServer{out: w, responses: make(map[string][]string)}, r
}

// Set scripts the lines printed for command.
func (e *EchoServer) Set(command string, lines ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[command] = lines
}

// Write implements io.Writer as the console's command sink.
func (e *EchoServer) Write(p []byte) (int, error) {
	cmd := strings.TrimSpace(string(p))
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	lines := e.responses[cmd]
	e.mu.Unlock()

	go func() {
		for _, line := range lines {
			if _, err := io.WriteString(e.out, line+"\n"); err != nil {
				return
			}
		}
	}()
	return len(p), nil
}

// Commands returns the commands written so far.
func (e *EchoServer) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// Close ends the output stream.
func (e *EchoServer) Close() error {
	return e.out.Close()
}

// PawnLine renders one "GetAll BP_PlayerController_C Pawn" row. An empty pawn prints None.
func PawnLine(index int, controller types.ControllerID, pawn types.PawnID) string {
	return fmt.Sprintf("%d) %s %s%s.Pawn = %s", index, types.ClassPlayerController, level, controller,
		objectRef(types.ClassFigure, string(pawn)))
}

// DeadLine renders one "GetAll BP_FigureV2_C bIsDead" row.
func DeadLine(index int, pawn types.PawnID, dead bool) string {
	v := "False"
	if dead {
		v = "True"
	}
	return fmt.Sprintf("%d) %s %s%s.bIsDead = %s", index, types.ClassFigure, level, pawn, v)
}

// HitLine renders one "GetAll BP_FigureV2_C LastHitBy" row. An empty hitter prints None.
func HitLine(index int, pawn types.PawnID, hitter types.ControllerID) string {
	return fmt.Sprintf("%d) %s %s%s.LastHitBy = %s", index, types.ClassFigure, level, pawn,
		objectRef(types.ClassPlayerController, string(hitter)))
}

// StateLine renders one "GetAll BP_PlayerController_C PlayerState" row.
func StateLine(index int, controller types.ControllerID, state types.PlayerStateID) string {
	return fmt.Sprintf("%d) %s %s%s.PlayerState = %s", index, types.ClassPlayerController, level, controller,
		objectRef(types.ClassPlayerState, string(state)))
}

// LeaderboardLines renders one "GetAll BP_PlayerState_C LeaderboardData" entry.
func LeaderboardLines(index int, state types.PlayerStateID, columns ...int) []string {
	lines := []string{fmt.Sprintf("%d) %s %s%s.LeaderboardData =", index, types.ClassPlayerState, level, state)}
	for i, c := range columns {
		lines = append(lines, fmt.Sprintf("\t%d: %d", i, c))
	}
	return lines
}

// NameLine renders one "GetAll BP_PlayerState_C PlayerName" row.
func NameLine(index int, state types.PlayerStateID, name string) string {
	return fmt.Sprintf("%d) %s %s%s.PlayerName = %s", index, types.ClassPlayerState, level, state, name)
}

// UserIDLine renders one "GetAll BP_PlayerState_C UserId" row.
func UserIDLine(index int, state types.PlayerStateID, id string) string {
	return fmt.Sprintf("%d) %s %s%s.UserId = %s", index, types.ClassPlayerState, level, state, id)
}

func objectRef(class, name string) string {
	if name == "" {
		return "None"
	}
	return fmt.Sprintf("%s'%s%s'", class, level, name)
}

// RecordingSender collects every event sent to it. It satisfies notifier.Sender.
type RecordingSender struct {
	name string

	mu     sync.Mutex
	events []types.Event
	err    error
}

// NewRecordingSender returns a sender identified by name.
func NewRecordingSender(name string) *RecordingSender {
	return &RecordingSender{name: name}
}

// Name returns the subscriber name.
func (r *RecordingSender) Name() string { return r.name }

// Start is a no-op.
func (r *RecordingSender) Start(context.Context) {}

// Send records ev and returns the configured error, if any.
func (r *RecordingSender) Send(_ context.Context, ev types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

// FailWith makes subsequent sends return err (the event is still recorded).
func (r *RecordingSender) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns a copy of the recorded events.
func (r *RecordingSender) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event(nil), r.events...)
}

// Names returns the wire names of the recorded events, in order.
func (r *RecordingSender) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name()
	}
	return names
}
