package gpuframe

import "errors"

// Device errors.
var (
	// ErrNilBackend is returned by New when no backend is given.
	ErrNilBackend = errors.New("gpuframe: nil backend")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("gpuframe: invalid config")

	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("gpuframe: device destroyed")

	// ErrNoFrame is returned when recording outside BeginFrame/PresentFrame.
	ErrNoFrame = errors.New("gpuframe: no frame in progress")

	// ErrPresent wraps presenter failures.
	ErrPresent = errors.New("gpuframe: present failed")
)
