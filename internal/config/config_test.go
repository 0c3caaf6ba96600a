package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != defaultPort {
		t.Errorf("port: got %d, want %d", cfg.HTTP.Port, defaultPort)
	}
	if cfg.Gateway.SessionTTL != defaultSessionTTL {
		t.Errorf("session ttl: got %s, want %s", cfg.Gateway.SessionTTL, defaultSessionTTL)
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be disabled by default")
	}
	if len(cfg.RateLimit.TrustedProxies) != 0 {
		t.Errorf("no proxy should be trusted by default: %v", cfg.RateLimit.TrustedProxies)
	}
	if cfg.Fees.For("anything") != defaultPostingFee {
		t.Errorf("default fee: got %d", cfg.Fees.For("anything"))
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_DEFAULT_TTL", "2m")
	t.Setenv("POSTING_FEE_DEFAULT", "1000")
	t.Setenv("POSTING_FEES", "Web:3000, design:2000")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr() != "0.0.0.0:9090" {
		t.Errorf("addr: got %s", cfg.HTTP.Addr())
	}
	if cfg.Cache.DefaultTTL != 2*time.Minute {
		t.Errorf("cache ttl: got %s", cfg.Cache.DefaultTTL)
	}
	if got := cfg.Fees.For("web"); got != 3000 {
		t.Errorf("web fee: got %d, want 3000", got)
	}
	if got := cfg.Fees.For(" DESIGN "); got != 2000 {
		t.Errorf("design fee: got %d, want 2000", got)
	}
	if got := cfg.Fees.For("writing"); got != 1000 {
		t.Errorf("fallback fee: got %d, want 1000", got)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Errorf("origins: got %v", cfg.HTTP.AllowedOrigins)
	}
	proxies := cfg.RateLimit.TrustedProxies
	if len(proxies) != 2 || proxies[0].String() != "10.0.0.0/8" || proxies[1].String() != "192.0.2.7/32" {
		t.Errorf("trusted proxies: got %v", proxies)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name, key, value, want string
	}{
		{"bad port", "PORT", "abc", "PORT"},
		{"port out of range", "PORT", "70000", "out of range"},
		{"bad duration", "TOPUP_SESSION_TTL", "soon", "TOPUP_SESSION_TTL"},
		{"negative duration", "RATE_LIMIT_WINDOW", "-1s", "RATE_LIMIT_WINDOW"},
		{"bad fee list", "POSTING_FEES", "web=3000", "POSTING_FEES"},
		{"bad proxy", "RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/40", "RATE_LIMIT_TRUSTED_PROXIES"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}
