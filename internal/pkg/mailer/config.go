package mailer

import (
	"errors"
	"time"
)

// Config defines the SMTP configuration for reminder notifications
type Config struct {
	SMTPHost       string        `mapstructure:"smtp_host"`
	SMTPPort       int           `mapstructure:"smtp_port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	FromAddr       string        `mapstructure:"from_addr"`
	FromName       string        `mapstructure:"from_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Validate validates the mailer configuration
func (c *Config) Validate() error {
	if c.SMTPHost == "" {
		return errors.New("mailer: smtp_host is required")
	}
	if c.SMTPPort <= 0 {
		c.SMTPPort = 587
	}
	if c.FromAddr == "" {
		return errors.New("mailer: from_addr is required")
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return nil
}
