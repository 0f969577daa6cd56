package sim

import (
	"log/slog"

	"github.com/gogpu/gpuframe"
	"github.com/gogpu/gpuframe/backend"
)

var (
	_ gpuframe.Backend   = (*GPU)(nil)
	_ gpuframe.Presenter = (*GPU)(nil)
)

// init registers the simulated backend on package import.
func init() {
	backend.Register(backend.BackendSim, func(log *slog.Logger) (gpuframe.Backend, error) {
		return New(Options{Logger: log, Latency: DefaultImageCount - 1}), nil
	})
}
