package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaultBaseURL
	}
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("CADENCE_API_TOKEN"); ok {
			c.Server.APIToken = value
		}
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSync() {
	if c.Sync.ReconnectBaseMillis <= 0 {
		c.Sync.ReconnectBaseMillis = defaultReconnectBaseMillis
	}
	if c.Sync.ReconnectMaxMillis <= 0 {
		c.Sync.ReconnectMaxMillis = defaultReconnectMaxMillis
	}
	if c.Sync.ReconnectFactor <= 1 {
		c.Sync.ReconnectFactor = defaultReconnectFactor
	}
	if c.Sync.ReconnectJitter < 0 {
		c.Sync.ReconnectJitter = defaultReconnectJitter
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
