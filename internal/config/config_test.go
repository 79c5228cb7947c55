package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTemp(t, "listen: \":1080\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Listen != ":1080" {
		t.Fatalf("got listen %q", cfg.Listen)
	}
	if len(cfg.AllowedVersions) != 2 {
		t.Fatalf("expected default versions [4 5], got %v", cfg.AllowedVersions)
	}
	if cfg.RateLimitBurst != 100 {
		t.Fatalf("expected default rate limit burst, got %d", cfg.RateLimitBurst)
	}
}

func TestLoadMissingListen(t *testing.T) {
	path := writeTemp(t, "username: alice\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing listen address")
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	path := writeTemp(t, "listen: \":1080\"\nallowed_versions: [4, 6]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported protocol version")
	}
}

func TestLoadRejectsStrictSecurityWithSocks4Credentials(t *testing.T) {
	path := writeTemp(t, "listen: \":1080\"\nusername: alice\nallowed_versions: [4, 5]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for socks4+credentials under strict security (the default)")
	}
}

func TestLoadAllowsSocks4CredentialsWithNoStrictSecurity(t *testing.T) {
	path := writeTemp(t, "listen: \":1080\"\nusername: alice\nallowed_versions: [4, 5]\nno_strict_security: true\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("unexpected error with no_strict_security set: %v", err)
	}
}

func TestLoadRejectsBadEncoding(t *testing.T) {
	path := writeTemp(t, "listen: \":1080\"\nencoding: rot13\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

func TestLoadRejectsAutocertWithoutHosts(t *testing.T) {
	path := writeTemp(t, "listen: \":1080\"\nautocert:\n  enabled: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for autocert enabled without allow_hosts")
	}
}
