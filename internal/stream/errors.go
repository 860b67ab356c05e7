package stream

import "errors"

var (
	ErrKeyResolution = errors.New("failed to resolve websocket key")
	ErrKeyNotFound   = errors.New("websocket key not found in page")
	ErrConnection    = errors.New("websocket connection failed")
)
