package publish

import (
	"encoding/json"

	"github.com/itohio/gosense/pkg/sample"
)

// Record is the JSON document sent to the backend. Field order is the wire order.
type Record struct {
	DeviceID   string           `json:"device_id"`
	Vibration  int              `json:"vibration"` // 1 when triggered at the last sample
	EventCount uint64           `json:"event_count"`
	GasRaw     uint16           `json:"gas_raw"`
	GasStatus  sample.GasStatus `json:"gas_status"`
}

// NewRecord snapshots s for deviceID.
func NewRecord(deviceID string, s *sample.State) Record {
	vibration := 0
	if s.VibrationRaw {
		vibration = 1
	}

	return Record{
		DeviceID:   deviceID,
		Vibration:  vibration,
		EventCount: s.EventCount,
		GasRaw:     s.GasRaw,
		GasStatus:  s.GasStatus,
	}
}

// Marshal encodes the record.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
