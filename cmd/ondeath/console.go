package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/config"
	"github.com/potooio/ondeath/internal/console"
)

// consoleLink is an open connection to the server console.
type consoleLink struct {
	source   console.Source
	commands io.Writer
	close    func() error
	// process is the server started in exec mode, nil in tail mode.
	process *os.Process
}

// openConsole connects to the console as cfg.Mode describes.
//
// In exec mode the server is started here, in its own process group, and is
// never signalled by ondeath: closing the link releases the server's stdin
// and leaves it running. Its stdout is still a pipe into ondeath, so a server
// that must outlive ondeath should be run in tail mode instead.
func openConsole(cfg config.ConsoleConfig, logger *zap.Logger) (*consoleLink, error) {
	switch cfg.Mode {
	case config.ConsoleExec:
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		cmd.Dir = cfg.Dir
		cmd.Stderr = os.Stderr
		detach(cmd)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("server stdin: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("server stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start server %q: %w", cfg.Command[0], err)
		}
		pid := cmd.Process.Pid
		logger.Info("Server process started",
			zap.Strings("command", cfg.Command),
			zap.Int("pid", pid),
		)

		exited := make(chan error, 1)
		go func() { exited <- cmd.Wait() }()

		return &consoleLink{
			source:   console.NewReaderSource("exec:"+cfg.Command[0], stdout),
			commands: stdin,
			process:  cmd.Process,
			close: func() error {
				_ = stdin.Close()
				select {
				case err := <-exited:
					return err
				default:
				}
				logger.Warn("Server process left running, ondeath no longer reads its console",
					zap.Int("pid", pid),
					zap.Strings("command", cfg.Command),
				)
				return nil
			},
		}, nil

	case config.ConsoleTail:
		// Opening a FIFO for writing blocks until the server opens it for reading.
		fifo, err := os.OpenFile(cfg.Commands, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return nil, fmt.Errorf("open command pipe: %w", err)
		}
		logger.Info("Following server log",
			zap.String("log", cfg.Log),
			zap.String("commands", cfg.Commands),
		)
		return &consoleLink{
			source:   console.NewTailSource(cfg.Log),
			commands: fifo,
			close:    fifo.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown console mode %q", cfg.Mode)
}
