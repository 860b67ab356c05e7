package sample

import "time"

// isoLayout mirrors the datetime column written by earlier collectors so the
// offline tooling that reads the CSV files keeps parsing.
const isoLayout = "2006-01-02T15:04:05.999999"

// Sample is one accepted heart-rate reading. Values are immutable after
// creation; consumers receive copies, never shared state.
type Sample struct {
	Timestamp   float64 `json:"timestamp"`
	Value       int     `json:"heart_rate"`
	ISODatetime string  `json:"datetime"`
}

// New builds a Sample for the given BPM value observed at the given time.
func New(value int, at time.Time) Sample {
	return Sample{
		Timestamp:   float64(at.UnixNano()) / float64(time.Second),
		Value:       value,
		ISODatetime: at.Format(isoLayout),
	}
}

// Time converts the sample's epoch timestamp back to a local time.Time.
func (s Sample) Time() time.Time {
	sec := int64(s.Timestamp)
	nsec := int64((s.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
