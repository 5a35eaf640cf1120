package daemon

import "errors"

// Sentinel errors checked with errors.Is by the CLI.
var (
	// ErrDaemonNotRunning indicates the daemon is not currently running
	ErrDaemonNotRunning = errors.New("daemon is not running")

	// ErrDaemonAlreadyRunning indicates the daemon is already running
	ErrDaemonAlreadyRunning = errors.New("daemon is already running")
)
