package gemini

import (
	"errors"
	"time"
)

// Config defines the ingestion/caching service client configuration
type Config struct {
	// BaseURL is the API endpoint
	BaseURL string `mapstructure:"base_url"`

	// APIKey authenticates every request
	APIKey string `mapstructure:"api_key"`

	// Model is the model identifier cached contents are bound to
	Model string `mapstructure:"model"`

	// Timeout bounds a single HTTP round trip
	Timeout time.Duration `mapstructure:"timeout"`

	// PollInterval and PollTimeout bound ingest-job polling
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// Validate validates the client configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("gemini: base_url is required")
	}
	if c.APIKey == "" {
		return errors.New("gemini: api_key is required")
	}
	if c.Model == "" {
		c.Model = "models/gemini-2.0-flash"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 5 * time.Minute
	}
	return nil
}

// DefaultPollOptions derives poll options from the configuration
func (c *Config) DefaultPollOptions() *PollOptions {
	return &PollOptions{
		Interval: c.PollInterval,
		Timeout:  c.PollTimeout,
	}
}

// PollOptions controls ingest-job polling
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}
