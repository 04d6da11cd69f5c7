package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Floor.Columns != 4 || len(cfg.Floor.Tables) != 12 {
		t.Fatalf("unexpected default floor: %+v", cfg.Floor)
	}
	if cfg.Window() != time.Hour {
		t.Fatalf("unexpected default window: %v", cfg.Window())
	}
}

func TestDuplicateTableID(t *testing.T) {
	_, err := FromYAML([]byte(`floor:
  columns: 2
  tables:
    - {id: 1, capacity: 4}
    - {id: 1, capacity: 2}
`))
	if err == nil {
		t.Fatal("expected rejection of duplicate table id")
	}
}

func TestZeroCapacity(t *testing.T) {
	_, err := FromYAML([]byte(`floor:
  tables:
    - {id: 1, capacity: 0}
`))
	if err == nil {
		t.Fatal("expected rejection of zero capacity")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Floor.Tables) == 0 {
		t.Fatal("fallback config has no tables")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	doc := `restaurant:
  name: Trattoria
floor:
  columns: 2
  tables:
    - {id: 1, capacity: 2}
    - {id: 2, capacity: 4}
reservations:
  window_minutes: 30
`
	if err := os.WriteFile(filepath.Join(dir, "tableside.yml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Restaurant.Name != "Trattoria" || cfg.Floor.Columns != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Window() != 30*time.Minute {
		t.Fatalf("unexpected window: %v", cfg.Window())
	}
	if cfg.Menu.File != "menu.yml" {
		t.Fatalf("menu file default not applied: %q", cfg.Menu.File)
	}
}
