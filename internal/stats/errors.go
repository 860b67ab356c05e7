package stats

import "errors"

var (
	ErrNoData              = errors.New("no samples to export")
	ErrUnknownExportFormat = errors.New("unknown export format")
	ErrExportFailed        = errors.New("failed to export samples")
)
