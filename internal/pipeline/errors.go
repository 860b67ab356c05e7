package pipeline

import "errors"

var (
	ErrStorageCreationFailed = errors.New("failed to create daily log")
	ErrSupervisorRunFailed   = errors.New("connection supervisor failed")
	ErrRelayRunFailed        = errors.New("relay component failed")
)
