package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServerConfig_DefaultsWhenNoPath(t *testing.T) {
	cfg, err := loadServerConfig("")
	if err != nil {
		t.Fatalf("loadServerConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
}

func TestLoadServerConfig_ReadsTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gitserve.toml")
	content := "addr = \":9090\"\nbase_dir = \"/srv/repos\"\ncache_ttl = \"1h\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := loadServerConfig(path)
	if err != nil {
		t.Fatalf("loadServerConfig: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.BaseDir != "/srv/repos" || cfg.CacheTTL != "1h" {
		t.Fatalf("cfg = %+v, want addr :9090, base_dir /srv/repos, cache_ttl 1h", cfg)
	}
}

func TestBuildAuthZ_AllowAllWhenNoAuthFile(t *testing.T) {
	authz, err := buildAuthZ(ServerConfig{})
	if err != nil {
		t.Fatalf("buildAuthZ: %v", err)
	}
	ok, err := authz.Allow("alice", "project", 0, nil)
	if err != nil || !ok {
		t.Fatalf("AllowAll.Allow = %v, %v; want true, nil", ok, err)
	}
}

func TestParseCacheTTL(t *testing.T) {
	d, err := parseCacheTTL("30m")
	if err != nil {
		t.Fatalf("parseCacheTTL: %v", err)
	}
	if d != 30*time.Minute {
		t.Fatalf("d = %v, want 30m", d)
	}

	if _, err := parseCacheTTL("not-a-duration"); err == nil {
		t.Fatalf("parseCacheTTL(bad): expected error")
	}
}
