package sample

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// frameEnvelope is the subset of the channel protocol envelope the decoder
// cares about. Join acks, presence events and heartbeat replies all share the
// same shape; only frames carrying payload.hr produce a sample.
type frameEnvelope struct {
	Topic   string                     `json:"topic"`
	Event   string                     `json:"event"`
	Payload map[string]json.RawMessage `json:"payload"`
}

// DecodeFrame inspects one inbound text frame. It returns (bpm, true, nil)
// when the frame carries a usable heart-rate value, (0, false, nil) when the
// frame is valid JSON without one, and a wrapped ErrFrameDecode when the
// frame is not JSON at all.
func DecodeFrame(data []byte) (int, bool, error) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrFrameDecode, err)
	}

	raw, ok := env.Payload["hr"]
	if !ok {
		return 0, false, nil
	}
	bpm, ok := coerceBPM(raw)
	return bpm, ok, nil
}

// coerceBPM accepts a JSON number (truncated to an int) or a string holding
// a base-10 integer. Anything else is dropped.
func coerceBPM(raw json.RawMessage) (int, bool) {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return int(num), true
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.Atoi(str); err == nil {
			return v, true
		}
	}
	return 0, false
}
