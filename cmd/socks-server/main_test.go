package main

import (
	"testing"

	"github.com/latency-space/socksio/internal/config"
)

func TestApplyFlagOverridesLeavesConfigAloneWhenUnset(t *testing.T) {
	cfg := &config.Config{Listen: ":1080", AllowedVersions: []int{4, 5}}
	applyFlagOverrides(cfg, "", "", "", "", false)

	if len(cfg.AllowedVersions) != 2 {
		t.Fatalf("expected allowed versions untouched, got %v", cfg.AllowedVersions)
	}
	if cfg.Username != "" || cfg.Password != "" || cfg.Encoding != "" || cfg.NoStrictSecurity {
		t.Fatalf("expected no overrides applied, got %+v", cfg)
	}
}

func TestApplyFlagOverridesSetsFields(t *testing.T) {
	cfg := &config.Config{Listen: ":1080", AllowedVersions: []int{4, 5}}
	applyFlagOverrides(cfg, "5", "alice", "secret", "raw", true)

	if len(cfg.AllowedVersions) != 1 || cfg.AllowedVersions[0] != 5 {
		t.Fatalf("expected allowed versions [5], got %v", cfg.AllowedVersions)
	}
	if cfg.Username != "alice" || cfg.Password != "secret" {
		t.Fatalf("expected credentials overridden, got %+v", cfg)
	}
	if cfg.Encoding != "raw" {
		t.Fatalf("expected encoding overridden to raw, got %q", cfg.Encoding)
	}
	if !cfg.NoStrictSecurity {
		t.Fatal("expected no-strict override to set NoStrictSecurity")
	}
}

func TestApplyFlagOverridesParsesCommaSeparatedVersions(t *testing.T) {
	cfg := &config.Config{Listen: ":1080"}
	applyFlagOverrides(cfg, "4, 5", "", "", "", false)

	if len(cfg.AllowedVersions) != 2 || cfg.AllowedVersions[0] != 4 || cfg.AllowedVersions[1] != 5 {
		t.Fatalf("expected allowed versions [4 5], got %v", cfg.AllowedVersions)
	}
}
