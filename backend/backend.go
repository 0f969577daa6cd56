package backend

import (
	"errors"
	"log/slog"

	"github.com/gogpu/gpuframe"
)

// Backend name constants.
const (
	// BackendNative is the name of the gogpu/wgpu HAL backend.
	BackendNative = "native"
	// BackendSim is the name of the simulated backend.
	BackendSim = "sim"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none could be opened.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Factory opens a backend instance. A nil logger is silent.
type Factory func(log *slog.Logger) (gpuframe.Backend, error)
