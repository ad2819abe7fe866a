package sensor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Reading
		wantErr bool
	}{
		{
			name: "valid line - pin high",
			line: "123456,1,3512",
			want: Reading{Uptime: 123456 * time.Millisecond, Level: true, Gas: 3512},
		},
		{
			name: "valid line - pin low",
			line: "42,0,0",
			want: Reading{Uptime: 42 * time.Millisecond, Level: false, Gas: 0},
		},
		{
			name: "valid line - max ADC value",
			line: "1,1,4095",
			want: Reading{Uptime: time.Millisecond, Level: true, Gas: 4095},
		},
		{
			name:    "invalid - wrong number of fields",
			line:    "123456,1",
			wantErr: true,
		},
		{
			name:    "invalid - too many fields",
			line:    "123456,1,3512,extra",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric uptime",
			line:    "abc,1,3512",
			wantErr: true,
		},
		{
			name:    "invalid - level not binary",
			line:    "123456,2,3512",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric gas",
			line:    "123456,1,abc",
			wantErr: true,
		},
		{
			name:    "invalid - gas out of range",
			line:    "123456,1,5000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	dev := New("/dev/ttyUSB0", 57600, nil)
	assert.NotNil(t, dev)
	assert.Equal(t, "/dev/ttyUSB0", dev.port)
	assert.Equal(t, 57600, dev.baudRate)
	assert.False(t, dev.IsConnected())
	assert.True(t, dev.Level(), "pin idles high before the first line")
	assert.Equal(t, uint16(0), dev.Gas())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("/dev/ttyUSB0", 0, nil)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.NotNil(t, dev.logger)
}

func TestSerial_CloseWithoutConnect(t *testing.T) {
	dev := New("/dev/ttyUSB0", 0, nil)
	assert.NoError(t, dev.Close())
}

func TestSerial_ReadLinesKeepsLatest(t *testing.T) {
	dev := New("/dev/ttyUSB0", 0, nil)

	input := strings.Join([]string{
		"10,1,3000",
		"",
		"20,0,3600",
		"garbage",
		"30,0,4001",
		"40,9,100",
	}, "\n")

	dev.readLines(strings.NewReader(input))

	latest, lines, dropped := dev.Latest()
	assert.Equal(t, Reading{Uptime: 30 * time.Millisecond, Level: false, Gas: 4001}, latest)
	assert.Equal(t, uint64(3), lines)
	assert.Equal(t, uint64(2), dropped)
	assert.False(t, dev.Level())
	assert.Equal(t, uint16(4001), dev.Gas())
}

// unplugged yields one line and then fails like a removed USB adapter.
type unplugged struct {
	sent bool
}

func (u *unplugged) Read(p []byte) (int, error) {
	if u.sent {
		return 0, errors.New("device unplugged")
	}
	u.sent = true
	return copy(p, "10,0,4001\n"), nil
}

func TestSerial_ReaderErrorDisconnects(t *testing.T) {
	tests := []struct {
		name string
		r    func() io.Reader
	}{
		{name: "read error", r: func() io.Reader { return &unplugged{} }},
		{name: "eof", r: func() io.Reader { return strings.NewReader("10,0,4001\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := New("/dev/ttyUSB0", 0, discard())
			dev.connected = true

			dev.readLines(tt.r())

			assert.False(t, dev.IsConnected())
			_, lines, _ := dev.Latest()
			assert.Equal(t, uint64(1), lines)
			assert.ErrorIs(t, Watch(context.Background(), dev, time.Millisecond), ErrDisconnected)
		})
	}
}

func TestSerial_ReaderStopAfterCloseKeepsQuiet(t *testing.T) {
	dev := New("/dev/ttyUSB0", 0, discard())
	dev.connected = true
	require.NoError(t, dev.Close())

	dev.readLines(&unplugged{})
	assert.False(t, dev.IsConnected())
}

func TestWatch(t *testing.T) {
	dev := NewMock(testMockConfig())
	require.NoError(t, dev.Connect())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, Watch(ctx, dev, time.Millisecond), context.DeadlineExceeded)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = dev.Close()
	}()
	assert.ErrorIs(t, Watch(context.Background(), dev, time.Millisecond), ErrDisconnected)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
