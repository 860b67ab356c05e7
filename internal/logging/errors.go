package logging

import "errors"

var (
	ErrNoLogOutputs = errors.New("no logging outputs configured")
	ErrLogSetup     = errors.New("failed to set up logging output")
)
