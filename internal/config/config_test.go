package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PubPath != "/publish" {
		t.Fatalf("expected default pub path /publish, got %q", cfg.PubPath)
	}
	if cfg.SubPath != "/subscribe" {
		t.Fatalf("expected default sub path /subscribe, got %q", cfg.SubPath)
	}
	if cfg.Capacity != 32 {
		t.Fatalf("expected default capacity 32, got %d", cfg.Capacity)
	}
}

func TestLoadOverridesFromFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--listen", "0.0.0.0:9000",
		"--pub-path", "/emit",
		"--capacity", "64",
		"--unsafe-script",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Fatalf("expected overridden listen addr, got %q", cfg.Listen)
	}
	if cfg.PubPath != "/emit" {
		t.Fatalf("expected overridden pub path, got %q", cfg.PubPath)
	}
	if cfg.Capacity != 64 {
		t.Fatalf("expected overridden capacity, got %d", cfg.Capacity)
	}
	if !cfg.UnsafeScript {
		t.Fatalf("expected unsafe-script flag to be set")
	}
}
