package config

// DefaultConfigFilename is the name of the config file inside ~/.tlsgate.
const DefaultConfigFilename = "tlsgate.toml"

// ValidLogLevels lists the accepted server.log_level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error"}

// DefaultConfig returns the built-in configuration used when no file or
// environment override is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			LogLevel:     "info",
			DataDir:      "~/.tlsgate",
			TLSEnabled:   false,
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
		},
		Redirect: RedirectConfig{
			Enabled:          true,
			Host:             "localhost",
			StrictProtoMatch: false,
			CacheEnabled:     false,
			CacheSize:        1024,
		},
		Upstream: UpstreamConfig{
			URL:         "http://127.0.0.1:3000",
			Timeout:     30,
			MaxInflight: 64,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
	}
}
