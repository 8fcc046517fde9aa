package core

import (
	"errors"
)

var (
	// ErrFrameSkipped means the current frame could not be started or
	// finished (stale surface, failed fence wait). The caller should
	// simply try again on the next tick.
	ErrFrameSkipped = errors.New("frame skipped, retry next tick")
	// ErrSurfaceOutOfDate means the presentation surface no longer matches
	// the swapchain and a rebuild is required.
	ErrSurfaceOutOfDate = errors.New("surface out of date")
	// ErrDeviceLost is a fatal device-level failure.
	ErrDeviceLost = errors.New("device lost")
)
