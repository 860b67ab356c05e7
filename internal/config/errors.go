package config

import "errors"

var (
	ErrReadingConfigFile     = errors.New("failed to read config file")
	ErrUnmarshallingConfig   = errors.New("failed to unmarshal config")
	ErrConfigFileMissing     = errors.New("config file not found")
	ErrMissingSourceURL      = errors.New("source url must be set")
	ErrPlaceholderSourceURL  = errors.New("source url still contains the placeholder session id")
	ErrMissingSocketURL      = errors.New("source socketURL cannot be empty")
	ErrInvalidHeartbeat      = errors.New("stream heartbeatInterval must be positive")
	ErrInvalidRetryDelay     = errors.New("stream retryDelay must be positive")
	ErrInvalidWindowCapacity = errors.New("stream windowCapacity must be positive")
	ErrMissingDataDirectory  = errors.New("data directory cannot be empty")
	ErrEmptyRelayTopic       = errors.New("relay topic cannot be empty when brokers are set")
)
