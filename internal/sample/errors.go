package sample

import "errors"

var (
	ErrFrameDecode = errors.New("failed to decode inbound frame")
)
