package process

import "errors"

var (
	// ErrSpawnFailed is returned when the OS could not start the process.
	ErrSpawnFailed = errors.New("process: spawn failed")

	// ErrAlreadyRunning is returned by Manager.Start when the process is up.
	ErrAlreadyRunning = errors.New("process: already running")
)
