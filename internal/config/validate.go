package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tlsgatedev/tlsgate/internal/redirect"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	// Server validation
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}
	if cfg.Server.TLSEnabled {
		if cfg.Server.CertFile == "" {
			errs = append(errs, "server.cert_file must be set when tls_enabled is true")
		}
		if cfg.Server.KeyFile == "" {
			errs = append(errs, "server.key_file must be set when tls_enabled is true")
		}
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}

	// Redirect validation. A malformed redirect host must fail here,
	// before a broken policy could ever be installed.
	if cfg.Redirect.Enabled {
		if err := redirect.ValidateAuthority(cfg.Redirect.Host); err != nil {
			errs = append(errs, fmt.Sprintf("redirect.host %q is not a valid authority: %v", cfg.Redirect.Host, err))
		}
	}
	if cfg.Redirect.CacheSize < 0 {
		errs = append(errs, fmt.Sprintf("redirect.cache_size must be non-negative, got %d", cfg.Redirect.CacheSize))
	}

	// Upstream validation
	if cfg.Upstream.URL == "" {
		errs = append(errs, "upstream.url must not be empty")
	} else if u, err := url.Parse(cfg.Upstream.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("upstream.url %q must be an absolute http(s) URL", cfg.Upstream.URL))
	}
	if cfg.Upstream.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("upstream.timeout must be non-negative, got %d", cfg.Upstream.Timeout))
	}
	if cfg.Upstream.MaxInflight < 1 {
		errs = append(errs, fmt.Sprintf("upstream.max_inflight must be at least 1, got %d", cfg.Upstream.MaxInflight))
	}

	// Metrics validation
	if cfg.Metrics.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("metrics.retention_days must be at least 1, got %d", cfg.Metrics.RetentionDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
