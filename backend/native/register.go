package native

import (
	"log/slog"

	"github.com/gogpu/gpuframe"
	"github.com/gogpu/gpuframe/backend"
)

// init registers the native backend on package import.
func init() {
	backend.Register(backend.BackendNative, func(log *slog.Logger) (gpuframe.Backend, error) {
		return Open(Options{Logger: log})
	})
}
