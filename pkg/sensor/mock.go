package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/gosense/pkg/config"
)

// Mock simulates the sensor board for testing and development.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.RWMutex
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	startTime time.Time
	level     bool
	gas       uint16
}

// NewMock creates a new simulated device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.Default().Mock
	}

	return &Mock{
		cfg:   cfg,
		level: true,
	}
}

// Connect starts the simulation.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	// Each run gets its own context so the mock can be reconnected after Close.
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.connected = true
	m.startTime = time.Now()
	m.level, m.gas = m.simulate(0)

	go m.run(ctx, m.done)

	return nil
}

// Close stops the simulation.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	<-done

	return nil
}

// IsConnected returns whether the simulation is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Level returns the simulated raw level of the vibration pin.
func (m *Mock) Level() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Gas returns the simulated gas ADC reading.
func (m *Mock) Gas() uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gas
}

func (m *Mock) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			m.level, m.gas = m.simulate(now.Sub(m.startTime))
			m.mu.Unlock()
		}
	}
}

// simulate returns the pin level and gas reading at the given time since start.
// A vibration event pulls the pin low for EventDuration once every EventPeriod;
// gas follows a sine around GasBase clamped to the ADC range.
func (m *Mock) simulate(elapsed time.Duration) (bool, uint16) {
	level := true
	if m.cfg.EventPeriod > 0 {
		phase := elapsed % m.cfg.EventPeriod
		// Skip the very first window so the count starts at zero.
		if elapsed >= m.cfg.EventPeriod && phase < m.cfg.EventDuration {
			level = false
		}
	}

	gas := float32(m.cfg.GasBase)
	if m.cfg.GasPeriod > 0 {
		x := 2 * math32.Pi * float32(elapsed%m.cfg.GasPeriod) / float32(m.cfg.GasPeriod)
		gas += float32(m.cfg.GasAmplitude) * math32.Sin(x)
	}
	if gas < 0 {
		gas = 0
	} else if gas > ADCMax-0.5 {
		gas = ADCMax - 0.5
	}

	return level, uint16(gas + 0.5)
}
