package sample

import "fmt"

// GasStatus is the severity tier of a gas reading.
type GasStatus uint8

const (
	GasMedium GasStatus = iota
	GasWarning
	GasRisk
)

// String returns the wire name of the status.
func (s GasStatus) String() string {
	switch s {
	case GasMedium:
		return "MEDIUM"
	case GasWarning:
		return "WARNING"
	case GasRisk:
		return "RISK"
	default:
		return fmt.Sprintf("GasStatus(%d)", uint8(s))
	}
}

// MarshalText encodes the status by name, so JSON carries "RISK" and not 2.
func (s GasStatus) MarshalText() ([]byte, error) {
	if s > GasRisk {
		return nil, fmt.Errorf("unknown gas status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// Thresholds are the lower bounds (inclusive) of the WARNING and RISK tiers.
type Thresholds struct {
	Warning uint16
	Risk    uint16
}

// DefaultThresholds returns the thresholds the sensor board was calibrated for.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 3500, Risk: 4000}
}

// Classify maps a raw gas reading to its tier. A reading equal to a threshold
// belongs to the stricter tier.
func (t Thresholds) Classify(gas uint16) GasStatus {
	switch {
	case gas >= t.Risk:
		return GasRisk
	case gas >= t.Warning:
		return GasWarning
	default:
		return GasMedium
	}
}
