package config

import "testing"

func TestLoadWithoutFileReturnsDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DisassembleInstructionCount != Default().DisassembleInstructionCount {
		t.Fatalf("expected default config when no file exists")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := Default()
	cfg.Aliases["continue"] = []string{"c", "go"}
	cfg.ShowRegisterChanges = false

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ShowRegisterChanges {
		t.Fatal("expected ShowRegisterChanges=false to round trip")
	}
	if got := loaded.ResolveAlias("go"); got != "continue" {
		t.Fatalf("ResolveAlias(go) = %q, want continue", got)
	}
}

func TestResolveAliasFallsThrough(t *testing.T) {
	cfg := Default()
	if got := cfg.ResolveAlias("break"); got != "break" {
		t.Fatalf("ResolveAlias(break) = %q, want break unchanged", got)
	}
}
