// Command gpuframe-demo runs a frame loop on a gpuframe backend and prints
// the resulting lifecycle statistics.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/gpuframe"
	"github.com/gogpu/gpuframe/backend"
	_ "github.com/gogpu/gpuframe/backend/native" // register the native backend
	"github.com/gogpu/gpuframe/backend/sim"
	"github.com/gogpu/gpuframe/cmdlist"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		backendArg = flag.String("backend", "", "backend name (default: best available)")
		frames     = flag.Int("frames", 120, "number of frames to render")
		vsync      = flag.Bool("vsync", true, "wait for the presented image before reusing it")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	gpuframe.SetLogger(logger)

	cfg := gpuframe.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = gpuframe.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	cfg.VSync = *vsync

	b, err := openBackend(*backendArg, logger)
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer b.Close()

	dev, err := gpuframe.New(b, gpuframe.WithConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to create device: %v", err)
	}
	defer dev.Destroy()

	target := sim.NewImage("scratch", cmdlist.UsageCommon)
	for i := 0; i < *frames; i++ {
		if err := renderFrame(dev, target, i); err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
	}
	dev.WaitIdle()

	fmt.Println(dev.Stats())
	if g, ok := b.(*sim.GPU); ok {
		fmt.Println(g.Counters())
	}
}

func openBackend(name string, logger *slog.Logger) (gpuframe.Backend, error) {
	if name == "" {
		return backend.OpenDefault(logger)
	}
	return backend.Open(name, logger)
}

// renderFrame uploads per-frame constants and, on the simulated backend,
// records a clear and a transition of target.
func renderFrame(dev *gpuframe.Device, target *sim.Image, i int) error {
	if err := dev.BeginFrame(); err != nil {
		return err
	}

	var constants [16]byte
	binary.LittleEndian.PutUint64(constants[0:], uint64(i)) //nolint:gosec // G115: i >= 0
	binary.LittleEndian.PutUint64(constants[8:], math.Float64bits(float64(i)/60))
	if err := dev.BindConstants(0, constants[:]); err != nil {
		return err
	}

	if _, ok := dev.Backend().(*sim.GPU); ok {
		l, err := dev.CurrentCommandList()
		if err != nil {
			return err
		}
		if err := l.Transition(target, cmdlist.UsageRenderTarget); err != nil {
			return err
		}
		if err := l.ClearRenderTarget(target, [4]float32{0, 0, 0, 1}); err != nil {
			return err
		}
		if err := l.Transition(target, cmdlist.UsageShaderResource); err != nil {
			return err
		}
	}
	return dev.PresentFrame()
}
