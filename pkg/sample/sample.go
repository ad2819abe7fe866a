package sample

// State is the latest sampled sensor state. It is owned by the loop driver,
// written only by Sampler and read by the publisher.
type State struct {
	VibrationRaw  bool // Triggered (pin low) at the last sample
	VibrationPrev bool // Triggered at the sample before; equals VibrationRaw once Update returns
	EventCount    uint64
	GasRaw        uint16
	GasStatus     GasStatus
}

// Update folds one sample into the state. EventCount grows by one only when
// the vibration sensor goes from untriggered to triggered. There is no
// debouncing: contact bounce slower than the sample interval counts more than once.
func (s *State) Update(triggered bool, gas uint16, th Thresholds) {
	if triggered && !s.VibrationPrev {
		s.EventCount++
	}
	s.VibrationRaw = triggered
	s.VibrationPrev = triggered

	s.GasRaw = gas
	s.GasStatus = th.Classify(gas)
}

// Reader provides non-blocking access to the two sensor pins.
type Reader interface {
	Level() bool // Raw digital level of the vibration pin
	Gas() uint16 // Raw 12-bit gas reading
}

// Sampler reads the sensor pins and updates a State.
type Sampler struct {
	reader     Reader
	thresholds Thresholds
}

// NewSampler creates a Sampler reading from r.
func NewSampler(r Reader, th Thresholds) *Sampler {
	return &Sampler{
		reader:     r,
		thresholds: th,
	}
}

// Thresholds returns the classification thresholds in use.
func (s *Sampler) Thresholds() Thresholds {
	return s.thresholds
}

// Sample reads both pins once and updates state. The vibration sensor is
// active-low: a low pin means triggered.
func (s *Sampler) Sample(state *State) {
	triggered := !s.reader.Level()
	gas := s.reader.Gas()
	state.Update(triggered, gas, s.thresholds)
}
