package config

const (
	defaultBaseURL             = "http://127.0.0.1:7823"
	defaultRequestTimeout      = 10
	defaultLogDir              = "~/.local/share/cadence/logs"
	defaultCacheDir            = "~/.local/share/cadence/cache"
	defaultReconnectBaseMillis = 500
	defaultReconnectMaxMillis  = 30000
	defaultReconnectFactor     = 2.0
	defaultReconnectJitter     = 0.2
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Paths: Paths{
			LogDir:   defaultLogDir,
			CacheDir: defaultCacheDir,
		},
		Sync: Sync{
			ReconnectBaseMillis: defaultReconnectBaseMillis,
			ReconnectMaxMillis:  defaultReconnectMaxMillis,
			ReconnectFactor:     defaultReconnectFactor,
			ReconnectJitter:     defaultReconnectJitter,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
