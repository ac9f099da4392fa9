package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func TestLoadCreatesDefaultOnMissing(t *testing.T) {
	path := tempConfigPath(t)
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	cfg := m.Get()
	if cfg == nil {
		t.Fatal("Get returned nil")
	}
	if cfg.ChunkBytes != 32*1024 {
		t.Errorf("ChunkBytes = %d, want %d", cfg.ChunkBytes, 32*1024)
	}
	if cfg.Distance != "cosine" {
		t.Errorf("Distance = %q, want cosine", cfg.Distance)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := m.Get()
	cfg.Dim = 384
	cfg.Distance = "dot"
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := m2.Get()
	if got.Dim != 384 || got.Distance != "dot" {
		t.Errorf("reloaded config = %+v, want Dim=384 Distance=dot", got)
	}
}

func TestLoadRejectsUnknownDistance(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte(`{"distance":"manhattan","chunk_bytes":1024}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := NewManager(path)
	if err := m.Load(); err == nil {
		t.Fatal("expected error for unknown distance metric")
	}
}

func TestEnvOverride(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv(envPrefix+"DIM", "768")
	t.Setenv(envPrefix+"DISTANCE", "euclid")

	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := m.Get()
	if cfg.Dim != 768 {
		t.Errorf("Dim = %d, want 768 from env override", cfg.Dim)
	}
	if cfg.Distance != "euclid" {
		t.Errorf("Distance = %q, want euclid from env override", cfg.Distance)
	}
}
