//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// detach puts the server in its own process group so a terminal interrupt
// aimed at ondeath does not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
