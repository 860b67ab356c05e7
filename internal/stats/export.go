package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Export formats supported by Aggregator.Export.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Export writes the retained samples to w in the given format. A positive
// minutes value restricts the export to the last N minutes; zero or negative
// exports the full window.
func (a *Aggregator) Export(w io.Writer, format string, minutes int) error {
	samples := a.All()
	if minutes > 0 {
		samples = a.Recent(minutes)
	}
	if len(samples) == 0 {
		return ErrNoData
	}

	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"timestamp", "heart_rate", "datetime"}); err != nil {
			return fmt.Errorf("%w: %w", ErrExportFailed, err)
		}
		for _, s := range samples {
			record := []string{
				strconv.FormatFloat(s.Timestamp, 'f', 6, 64),
				strconv.Itoa(s.Value),
				s.ISODatetime,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("%w: %w", ErrExportFailed, err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrExportFailed, err)
		}
		return nil

	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(samples); err != nil {
			return fmt.Errorf("%w: %w", ErrExportFailed, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownExportFormat, format)
	}
}
