package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNilDevice is returned when a nil HAL device or queue is given.
	ErrNilDevice = errors.New("native: nil HAL device or queue")

	// ErrProvider is returned when a device provider does not expose HAL
	// objects.
	ErrProvider = errors.New("native: provider does not expose HAL device")

	// ErrForeignObject is returned when an object created by another
	// backend is passed in.
	ErrForeignObject = errors.New("native: object from another backend")

	// ErrNotEncoding is returned when closing or submitting a recorder that
	// is not encoding.
	ErrNotEncoding = errors.New("native: recorder not encoding")

	// ErrSlotRange is returned when a descriptor write exceeds its heap.
	ErrSlotRange = errors.New("native: descriptor slot out of range")

	// ErrUnsupportedBinding is returned for binding kinds that have no
	// buffer binding equivalent.
	ErrUnsupportedBinding = errors.New("native: unsupported binding kind")
)
