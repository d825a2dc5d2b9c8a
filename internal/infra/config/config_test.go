package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("UDIR_JWT_SECRET_KEY", strings.Repeat("k", 48))
	t.Setenv("UDIR_RATE_LIMIT_MAX_REQUESTS", "25")
	t.Setenv("CACHE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.RateLimit.MaxRequests != 25 {
		t.Fatalf("expected max requests 25, got %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.WindowDuration != time.Minute {
		t.Fatalf("expected default window 1m, got %v", cfg.RateLimit.WindowDuration)
	}
	if cfg.RateLimit.Retention() != 5*time.Minute {
		t.Fatalf("expected retention 5m, got %v", cfg.RateLimit.Retention())
	}
	if cfg.Cache.Backend != "memory" {
		t.Fatalf("expected bare env name to bind cache backend, got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.UserTTL != 30*time.Minute || cfg.Cache.ListTTL != 15*time.Minute || cfg.Cache.DefaultTTL != time.Hour {
		t.Fatalf("unexpected cache ttls: %+v", cfg.Cache)
	}
	if cfg.JWT.AccessTokenTTL != time.Hour {
		t.Fatalf("expected token ttl 1h, got %v", cfg.JWT.AccessTokenTTL)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("UDIR_JWT_SECRET_KEY", "short")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for short jwt secret")
	}
}

func TestValidateRejectsUnknownCacheBackend(t *testing.T) {
	cfg := AppConfig{
		JWT:   JWTSettings{SecretKey: strings.Repeat("s", 32), Issuer: "iss", Audience: "aud"},
		Cache: CacheSettings{Backend: "memcached"},
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "memcached") {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}

func TestValidateTrustedProxies(t *testing.T) {
	base := AppConfig{
		JWT:   JWTSettings{SecretKey: strings.Repeat("s", 32), Issuer: "iss", Audience: "aud"},
		Cache: CacheSettings{Backend: "memory"},
	}

	ok := base
	ok.App.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.10", "2001:db8::/32"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected proxies to validate, got %v", err)
	}

	bad := base
	bad.App.TrustedProxies = []string{"10.0.0.0/8", "proxy.internal"}
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "proxy.internal") {
		t.Fatalf("expected invalid proxy error, got %v", err)
	}
}
