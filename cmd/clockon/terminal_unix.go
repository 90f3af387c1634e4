//go:build !windows

package main

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// disableCtrlCEcho turns off ECHOCTL on an interactive stdin, so an interrupted run
// doesn't leave "^C" in front of the error line. the returned func restores the terminal.
func disableCtrlCEcho() func() {
	noop := func() {}
	fd := int(os.Stdin.Fd()) //nolint:gosec // fd fits int
	if !term.IsTerminal(fd) {
		return noop
	}

	saved, err := unix.IoctlGetTermios(fd, getTermios)
	if err != nil {
		return noop
	}
	quiet := *saved
	quiet.Lflag &^= unix.ECHOCTL
	if err := unix.IoctlSetTermios(fd, setTermios, &quiet); err != nil {
		return noop
	}
	return func() { _ = unix.IoctlSetTermios(fd, setTermios, saved) }
}
