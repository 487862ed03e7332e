// Package config provides TOML configuration loading with environment
// variable overrides for the contact relay.
package config

import (
	"fmt"
	"net/mail"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// defaultMaxAttachmentMB caps the total attachment size at 25 MB.
const defaultMaxAttachmentMB = 25

// Well-known config file locations, probed in order when no explicit
// path is given.
var defaultPaths = []string{
	"/etc/briefkasten/briefkasten.toml",
	"briefkasten.toml",
}

// Config holds the complete application configuration. It is loaded once
// at process start and treated as read-only afterwards.
type Config struct {
	LogLevel         string           `toml:"log_level"`
	Transport        string           `toml:"transport"`
	TrustedProxy     string           `toml:"trusted_proxy"`
	RateLimitSeconds int              `toml:"rate_limit_seconds"`
	MaxAttachmentMB  int64            `toml:"max_attachment_mb"`
	ArchiveDir       string           `toml:"archive_dir"`
	BlockWords       []string         `toml:"block_words"`
	Mail             MailConfig       `toml:"mail"`
	SES              SESConfig        `toml:"ses"`
	Recipients       []RecipientGroup `toml:"recipients"`

	proxyAddr netip.Addr
}

// MailConfig holds the SMTP transport configuration. User doubles as the
// sender address of every relayed message.
type MailConfig struct {
	SMTP     string `toml:"smtp"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	StartTLS bool   `toml:"starttls"`
}

// SESConfig holds the AWS SES transport configuration. Static credentials
// are optional; when absent the default AWS credential chain applies.
type SESConfig struct {
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// RecipientGroup maps a direction tag to one or more destination addresses.
type RecipientGroup struct {
	Direction string   `toml:"direction"`
	Mails     []string `toml:"mails"`
	AllowHTML bool     `toml:"allow_html"`
}

// Load reads the configuration file at path, or from a well-known location
// if path is empty, applies environment variable overrides and validates
// the result. Any validation failure is fatal: the process must not start
// with a half-usable configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = probeDefaultPath()
	}

	cfg := &Config{}
	cfg.applyDefaults()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Environment variables always override file values
	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// probeDefaultPath returns the first existing well-known config location,
// or the last candidate so the decode error names a sensible path.
func probeDefaultPath() string {
	for _, p := range defaultPaths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return defaultPaths[len(defaultPaths)-1]
}

// Validate checks everything the pipeline relies on at startup.
func (c *Config) Validate() error {
	if c.TrustedProxy != "" {
		addr, err := netip.ParseAddr(c.TrustedProxy)
		if err != nil {
			return fmt.Errorf("trusted_proxy %q is not a valid IP address: %w", c.TrustedProxy, err)
		}
		c.proxyAddr = addr
	}

	if c.RateLimitSeconds < 0 {
		return fmt.Errorf("rate_limit_seconds must not be negative, got %d", c.RateLimitSeconds)
	}
	if c.MaxAttachmentMB <= 0 {
		return fmt.Errorf("max_attachment_mb must be positive, got %d", c.MaxAttachmentMB)
	}

	switch c.Transport {
	case "smtp":
		if c.Mail.SMTP == "" {
			return fmt.Errorf("mail.smtp host is required for the smtp transport")
		}
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			return fmt.Errorf("mail.port %d is out of range", c.Mail.Port)
		}
	case "ses":
		if c.SES.Region == "" {
			return fmt.Errorf("ses.region is required for the ses transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want smtp or ses)", c.Transport)
	}

	if c.Mail.User == "" {
		return fmt.Errorf("mail.user sender address is required")
	}
	if _, err := mail.ParseAddress(c.Mail.User); err != nil {
		return fmt.Errorf("mail.user %q is not a valid address: %w", c.Mail.User, err)
	}

	for _, g := range c.Recipients {
		if g.Direction == "" {
			return fmt.Errorf("recipient group without a direction")
		}
		for _, m := range g.Mails {
			if _, err := mail.ParseAddress(m); err != nil {
				return fmt.Errorf("recipient %q in direction %q is not a valid address: %w", m, g.Direction, err)
			}
		}
	}

	return nil
}

// TrustedProxyAddr returns the parsed trusted proxy IP. The zero Addr
// means no proxy is trusted.
func (c *Config) TrustedProxyAddr() netip.Addr {
	return c.proxyAddr
}

// MaxAttachmentBytes converts the configured megabyte cap to bytes.
func (c *Config) MaxAttachmentBytes() int64 {
	return c.MaxAttachmentMB * 1048576
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.LogLevel = "info"
	c.Transport = "smtp"
	c.MaxAttachmentMB = defaultMaxAttachmentMB
	c.Mail.Port = 587
	c.Mail.StartTLS = true
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("BRIEFKASTEN_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("BRIEFKASTEN_TRANSPORT"); v != "" {
		c.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("BRIEFKASTEN_TRUSTED_PROXY"); v != "" {
		c.TrustedProxy = v
	}
	if v := os.Getenv("BRIEFKASTEN_RATE_LIMIT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitSeconds = n
		}
	}
	if v := os.Getenv("BRIEFKASTEN_MAX_ATTACHMENT_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxAttachmentMB = n
		}
	}
	if v := os.Getenv("BRIEFKASTEN_ARCHIVE_DIR"); v != "" {
		c.ArchiveDir = v
	}

	if v := os.Getenv("BRIEFKASTEN_SMTP_HOST"); v != "" {
		c.Mail.SMTP = v
	}
	if v := os.Getenv("BRIEFKASTEN_SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mail.Port = n
		}
	}
	if v := os.Getenv("BRIEFKASTEN_SMTP_USER"); v != "" {
		c.Mail.User = v
	}
	if v := os.Getenv("BRIEFKASTEN_SMTP_PASSWORD"); v != "" {
		c.Mail.Password = v
	}

	if v := os.Getenv("BRIEFKASTEN_SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("BRIEFKASTEN_SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("BRIEFKASTEN_SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
}
