package gpuframe

import "log/slog"

// Option configures a Device during creation.
//
// Example:
//
//	dev, err := gpuframe.New(b,
//		gpuframe.WithBufferCount(2),
//		gpuframe.WithLogger(logger),
//	)
type Option func(*deviceOptions)

// deviceOptions holds optional configuration for Device creation.
type deviceOptions struct {
	cfg       Config
	logger    *slog.Logger
	presenter Presenter
	noPresent bool
}

// defaultOptions returns the default device options.
func defaultOptions() deviceOptions {
	return deviceOptions{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override individual fields.
func WithConfig(c Config) Option {
	return func(o *deviceOptions) {
		o.cfg = c
	}
}

// WithBufferCount sets the number of frames the CPU may run ahead.
func WithBufferCount(n int) Option {
	return func(o *deviceOptions) {
		o.cfg.BufferCount = n
	}
}

// WithVSync enables or disables the BeginFrame wait.
func WithVSync(on bool) Option {
	return func(o *deviceOptions) {
		o.cfg.VSync = on
	}
}

// WithLogger sets the device logger. By default the package logger
// (see SetLogger) is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *deviceOptions) {
		o.logger = l
	}
}

// WithPresenter sets the swapchain presenter. A nil presenter makes the
// device rotate image indices itself and skip presentation, even if the
// backend implements Presenter.
func WithPresenter(p Presenter) Option {
	return func(o *deviceOptions) {
		o.presenter = p
		o.noPresent = p == nil
	}
}
