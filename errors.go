package termatlas

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine.
var (
	// ErrDeviceLost indicates the output device was removed or reset.
	// The frame should be retried: the engine has already discarded all
	// device-derived state (including the glyph atlas) and will rebuild
	// it on the next Present.
	ErrDeviceLost = errors.New("termatlas: device lost, retry frame")

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("termatlas: engine closed")

	// ErrNoSurface is returned by Present when no presentation surface
	// has been configured.
	ErrNoSurface = errors.New("termatlas: no presentation surface")
)

// ShapingBufferError reports that a row could not be shaped because the
// glyph buffers did not reach the required size within the retry bound.
// The affected row is skipped; the rest of the frame is unaffected.
type ShapingBufferError struct {
	Row      int
	Attempts int
	Needed   int
}

func (e *ShapingBufferError) Error() string {
	return fmt.Sprintf("termatlas: shaping buffer for row %d still undersized after %d attempts (needed %d)",
		e.Row, e.Attempts, e.Needed)
}

// DeviceLossError wraps a backend failure that is recoverable at the
// frame level. It unwraps to ErrDeviceLost so callers can test with
// errors.Is and simply retry the frame.
type DeviceLossError struct {
	Cause error
}

func (e *DeviceLossError) Error() string {
	return fmt.Sprintf("termatlas: device lost: %v", e.Cause)
}

func (e *DeviceLossError) Unwrap() error { return ErrDeviceLost }
