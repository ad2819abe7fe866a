package sensor

import (
	"context"
	"errors"
	"time"
)

// ErrDisconnected is returned by Watch when a device stops delivering readings.
var ErrDisconnected = errors.New("sensor disconnected")

// Device defines the interface for sensor front-ends (serial-attached firmware or simulated).
//
// Level and Gas never block: they return the latest value the device has seen.
type Device interface {
	Connect() error
	Close() error
	IsConnected() bool
	Level() bool
	Gas() uint16
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// Watch polls d every poll interval and returns ErrDisconnected once it
// reports not connected, or ctx.Err() when ctx is done.
func Watch(ctx context.Context, d Device, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if !d.IsConnected() {
			return ErrDisconnected
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
