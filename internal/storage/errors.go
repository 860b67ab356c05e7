package storage

import "errors"

var (
	ErrCreateDirectory = errors.New("failed to create data directory")
	ErrOpenLogFile     = errors.New("failed to open daily log file")
	ErrWriteSample     = errors.New("failed to write sample record")
	ErrClearLogs       = errors.New("failed to clear daily log files")
)
