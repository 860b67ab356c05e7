package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultSocketURL       = "wss://app.hyperate.io/socket/websocket"
	defaultHeartbeat       = 30 * time.Second
	defaultRetryDelay      = 5 * time.Second
	defaultResolveTimeout  = 10 * time.Second
	defaultWindowCapacity  = 10000
	defaultDispatchBuffer  = 100
	defaultStatsInterval   = 5 * time.Second
	defaultRecentMinutes   = 5
	defaultHighBPM         = 160
	defaultDataDirectory   = "heart_rate_data"
	defaultRelayTopic      = "heart-rate-samples"
	defaultMetricsAddr     = ":9090"
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultLogFileEnabled  = false
	defaultLogDirectory    = "log"
	defaultLogFilename     = "app.log"
	defaultLogMaxSizeMB    = 100
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 7
	defaultLogCompress     = false
	defaultChannelFallback = "internal-testing"

	// placeholderMarker is the session-id stand-in shipped in the example
	// config; running with it still present is a startup error.
	placeholderMarker = "your-session-id"

	// Environment variable prefix
	envPrefix = "PULSELENS"
)

type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Data    DataConfig    `mapstructure:"data"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// SourceConfig names the remote heart-rate source. URL is the public page
// the connection key is scraped from; SocketURL is the websocket endpoint
// the key authorizes.
type SourceConfig struct {
	URL       string `mapstructure:"url"`
	SocketURL string `mapstructure:"socketURL"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
	RetryDelay        time.Duration `mapstructure:"retryDelay"`
	ResolveTimeout    time.Duration `mapstructure:"resolveTimeout"`
	WindowCapacity    int           `mapstructure:"windowCapacity"`
	DispatchBuffer    int           `mapstructure:"dispatchBuffer"`
	StatsInterval     time.Duration `mapstructure:"statsInterval"`
	RecentMinutes     int           `mapstructure:"recentMinutes"`
	HighBPMThreshold  int           `mapstructure:"highBPMThreshold"`
}

type DataConfig struct {
	Directory string `mapstructure:"directory"`
}

// RelayConfig enables the optional Kafka forwarder. The relay stays off
// until at least one broker is configured.
type RelayConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the listener
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and
// validates. An empty configPath skips the file entirely and builds the
// configuration from defaults and environment variables alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Set default values before reading the config source
	setDefaults(v)

	if configPath != "" {
		if err := readConfigFile(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ChannelID extracts the channel identifier from the source URL's id
// parameter, trimming trailing query or fragment parts. When the URL carries
// no id parameter a fixed fallback is returned so the join frame is always
// well-formed.
func (c SourceConfig) ChannelID() string {
	_, after, found := strings.Cut(c.URL, "id=")
	if !found {
		return defaultChannelFallback
	}
	if i := strings.IndexByte(after, '&'); i >= 0 {
		after = after[:i]
	}
	if i := strings.IndexByte(after, '#'); i >= 0 {
		after = after[:i]
	}
	if after == "" {
		return defaultChannelFallback
	}
	return after
}

// configureViper sets up a viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.socketURL", defaultSocketURL)
	v.SetDefault("stream.heartbeatInterval", defaultHeartbeat)
	v.SetDefault("stream.retryDelay", defaultRetryDelay)
	v.SetDefault("stream.resolveTimeout", defaultResolveTimeout)
	v.SetDefault("stream.windowCapacity", defaultWindowCapacity)
	v.SetDefault("stream.dispatchBuffer", defaultDispatchBuffer)
	v.SetDefault("stream.statsInterval", defaultStatsInterval)
	v.SetDefault("stream.recentMinutes", defaultRecentMinutes)
	v.SetDefault("stream.highBPMThreshold", defaultHighBPM)
	v.SetDefault("data.directory", defaultDataDirectory)
	v.SetDefault("relay.topic", defaultRelayTopic)
	v.SetDefault("metrics.addr", defaultMetricsAddr)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Source.URL == "" {
		return ErrMissingSourceURL
	}
	if strings.Contains(cfg.Source.URL, placeholderMarker) {
		return ErrPlaceholderSourceURL
	}
	if cfg.Source.SocketURL == "" {
		return ErrMissingSocketURL
	}
	if cfg.Stream.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeat
	}
	if cfg.Stream.RetryDelay <= 0 {
		return ErrInvalidRetryDelay
	}
	if cfg.Stream.WindowCapacity <= 0 {
		return ErrInvalidWindowCapacity
	}
	if cfg.Data.Directory == "" {
		return ErrMissingDataDirectory
	}
	if len(cfg.Relay.Brokers) > 0 && cfg.Relay.Topic == "" {
		return ErrEmptyRelayTopic
	}
	return nil
}
