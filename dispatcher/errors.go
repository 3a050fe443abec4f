package dispatcher

import "errors"

var (
	ErrRunning       = errors.New("dispatcher: already running")
	ErrStopped       = errors.New("dispatcher: already stopped")
	ErrDegradedStart = errors.New("dispatcher: worker pool started degraded")
	ErrWorkerFault   = errors.New("dispatcher: worker fault")
	ErrSpawnLimit    = errors.New("dispatcher: spawn limit reached")
)
