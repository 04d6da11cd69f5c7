// Package app wires a workspace together: config, floor seeding, and menu.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"tableside/internal/config"
	"tableside/internal/domain"
	"tableside/internal/menu"
	"tableside/internal/repo"
)

// SeedFloor inserts the configured tables that are missing from the database.
// Existing rows win: live occupancy and reservations survive config edits, and
// tables are never deleted here.
func SeedFloor(ctx context.Context, r repo.Repo, cfg *config.Config) error {
	existing, err := r.ListTables(ctx)
	if err != nil {
		return err
	}
	known := map[int]bool{}
	for _, t := range existing {
		known[t.ID] = true
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, def := range cfg.Floor.Tables {
		if known[def.ID] {
			continue
		}
		t := domain.Table{ID: def.ID, Capacity: def.Capacity, Status: domain.TableEmpty}
		if err := r.InsertTableTx(ctx, tx, t); err != nil {
			return fmt.Errorf("seed table %d: %w", def.ID, err)
		}
	}
	return tx.Commit()
}

// LoadCatalog resolves the menu file relative to the workspace, falling back
// to the built-in catalog when the file does not exist yet.
func LoadCatalog(workspace string, cfg *config.Config) (*menu.Catalog, error) {
	path := cfg.Menu.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return menu.Default(), nil
	}
	return menu.FromFile(path)
}

// MenuPath returns the resolved menu file location for a workspace.
func MenuPath(workspace string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.Menu.File) {
		return cfg.Menu.File
	}
	return filepath.Join(workspace, cfg.Menu.File)
}

// Bootstrap loads the workspace config, seeds the floor, and loads the menu.
func Bootstrap(ctx context.Context, conn *sql.DB, workspace string) (*config.Config, *menu.Catalog, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, err
	}
	if err := SeedFloor(ctx, repo.Repo{DB: conn}, cfg); err != nil {
		return nil, nil, err
	}
	catalog, err := LoadCatalog(workspace, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, catalog, nil
}
