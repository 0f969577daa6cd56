//go:build nogpu

package native

// Open always fails in nogpu builds.
func Open(Options) (*Backend, error) {
	return nil, ErrNoGPU
}
