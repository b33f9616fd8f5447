package pkg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultEnablesAllFourBits(t *testing.T) {
	cfg := Default()
	if !cfg.Optimise.DeadStatement || !cfg.Optimise.DeadCommaPart ||
		!cfg.Optimise.PeepholeOffload || !cfg.Optimise.PeepholeConstsink {
		t.Errorf("expected all four optimisation bits on by default, got %#v", cfg.Optimise)
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Optimise.DeadStatement {
		t.Error("expected Load of a missing file to return Default()")
	}
}

func TestLoadOverlaysOntoDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	content := "[optimise]\ndead_statement = false\n\n[runtime]\nseed = 42\n\n[output]\ndir = \"out\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Optimise.DeadStatement {
		t.Error("expected dead_statement=false to override the default")
	}
	if !cfg.Optimise.PeepholeOffload {
		t.Error("expected peephole_offload to keep its default (true) when not specified")
	}
	if cfg.Runtime.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Runtime.Seed)
	}
	if cfg.Output.Dir != "out" {
		t.Errorf("expected output dir %q, got %q", "out", cfg.Output.Dir)
	}
}

func TestFindWalksUpToNearestConfig(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte(""), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	module := filepath.Join(sub, "program.txt")
	if err := os.WriteFile(module, []byte(""), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	got := Find(module)
	want, _ := filepath.Abs(filepath.Join(root, ConfigFileName))
	if got != want {
		t.Errorf("Find() = %q, want %q", got, want)
	}
}

func TestFindReturnsEmptyWhenNoneExists(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(dir, "program.txt")
	if err := os.WriteFile(module, []byte(""), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if got := Find(module); got != "" {
		t.Errorf("expected no config found, got %q", got)
	}
}
