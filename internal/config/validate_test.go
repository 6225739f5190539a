package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.DataDir = "/tmp/tlsgate-test"
	return cfg
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate_PortRange(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.Server.Port = port
		if err := validate(cfg); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"
	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level: %v", err)
	}
}

func TestValidate_RedirectHost(t *testing.T) {
	cfg := validConfig()
	cfg.Redirect.Host = "::::"
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for malformed redirect host")
	}

	// A disabled redirect section skips the host check.
	cfg.Redirect.Enabled = false
	if err := validate(cfg); err != nil {
		t.Fatalf("disabled redirect should skip host validation: %v", err)
	}
}

func TestValidate_TLSRequiresCertAndKey(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TLSEnabled = true
	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error when TLS is enabled without cert/key")
	}
	if !strings.Contains(err.Error(), "cert_file") || !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention cert_file and key_file: %v", err)
	}

	cfg.Server.CertFile = "/etc/ssl/cert.pem"
	cfg.Server.KeyFile = "/etc/ssl/key.pem"
	if err := validate(cfg); err != nil {
		t.Fatalf("config with cert and key should validate: %v", err)
	}
}

func TestValidate_UpstreamURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative/path"} {
		cfg := validConfig()
		cfg.Upstream.URL = u
		if err := validate(cfg); err == nil {
			t.Errorf("expected error for upstream url %q", u)
		}
	}
}

func TestValidate_UpstreamMaxInflight(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.MaxInflight = 0
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for max_inflight of 0")
	}
}

func TestValidate_CombinesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Server.LogLevel = "bogus"
	cfg.Upstream.URL = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected combined validation error")
	}
	for _, want := range []string{"server.port", "server.log_level", "upstream.url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}
