//go:build !darwin && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package main

import "golang.org/x/sys/unix"

// termios ioctl requests on linux and other unix systems.
const (
	getTermios = unix.TCGETS
	setTermios = unix.TCSETS
)
