package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the firmware UART configuration.
	DefaultBaudRate = 115200
	// ADCMax is the largest value a 12-bit gas reading can take.
	ADCMax = 4095
)

// Reading is one line reported by the firmware.
type Reading struct {
	Uptime time.Duration // MCU uptime when the pins were read
	Level  bool          // Raw digital level of the vibration pin (sensor is active-low)
	Gas    uint16        // 12-bit ADC reading (0-4095)
}

// Port represents a serial port.
type Port struct {
	Name string
}

// Serial is a sensor front-end connected over a serial port. A reader
// goroutine keeps the latest reading; Level and Gas return it without blocking.
type Serial struct {
	port     string
	baudRate int
	logger   *slog.Logger

	conn      serial.Port
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	latest    Reading
	lines     uint64
	dropped   uint64
}

// New creates a new Serial device with the specified port and baud rate.
func New(port string, baudRate int, logger *slog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		// Pull-up keeps the pin high until the sensor reports otherwise.
		latest: Reading{Level: true},
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name})
	}

	return result, nil
}

// Connect opens the serial port and starts reading lines from the firmware.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.readLines(port)

	return nil
}

// Close closes the connection and stops the reader.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.logger.Warn("closing serial port", "port", d.port, "error", err)
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Level returns the latest raw level of the vibration pin.
func (d *Serial) Level() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest.Level
}

// Gas returns the latest gas ADC reading.
func (d *Serial) Gas() uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest.Gas
}

// Latest returns the most recent reading together with the line counters.
func (d *Serial) Latest() (r Reading, lines, dropped uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest, d.lines, d.dropped
}

// readLines parses firmware lines from r until EOF, a read error or Close.
// If it stops for any reason other than Close the device is marked disconnected.
func (d *Serial) readLines(r io.Reader) {
	defer d.readerStopped()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic in serial reader", "panic", rec)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reading, err := parseLine(line)

		d.mu.Lock()
		if err != nil {
			d.dropped++
		} else {
			d.latest = reading
			d.lines++
		}
		d.mu.Unlock()

		if err != nil {
			d.logger.Debug("dropping firmware line", "line", line, "error", err)
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		select {
		case <-d.ctx.Done():
		default:
			d.logger.Error("reading from serial port", "port", d.port, "error", err)
		}
	}
}

// readerStopped drops the connection after the reader exits on its own,
// so stale readings are not reported as live.
func (d *Serial) readerStopped() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx.Err() != nil || !d.connected {
		return
	}

	d.logger.Error("serial reader stopped, sensor board lost", "port", d.port)
	d.connected = false
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.logger.Warn("closing serial port", "port", d.port, "error", err)
		}
		d.conn = nil
	}
}

// parseLine parses a line from the firmware into a Reading.
// Format: uptime_millis,level,gas
// Example: 123456,1,3512
func parseLine(line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Reading{}, fmt.Errorf("invalid line format: expected 3 comma-separated values, got %d", len(parts))
	}

	millis, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid uptime: %w", err)
	}

	var level bool
	switch parts[1] {
	case "0":
		level = false
	case "1":
		level = true
	default:
		return Reading{}, fmt.Errorf("invalid level %q: expected 0 or 1", parts[1])
	}

	gas, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid gas reading: %w", err)
	}
	if gas > ADCMax {
		return Reading{}, fmt.Errorf("gas reading out of range: %d (max %d)", gas, ADCMax)
	}

	return Reading{
		Uptime: time.Duration(millis) * time.Millisecond,
		Level:  level,
		Gas:    uint16(gas),
	}, nil
}
