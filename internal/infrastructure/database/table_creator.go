// Package database provides schema creation for the site document store
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/security"
)

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// SeedInitialContent creates a starter site when the store is empty. It
// returns the id of the seeded site, or "" when sites already exist.
func (tc *TableCreator) SeedInitialContent(db *sql.DB, registry *blocks.Registry, siteName string) (string, error) {
	var exists bool
	if err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM sites)").Scan(&exists); err != nil {
		return "", fmt.Errorf("failed to check for existing sites: %w", err)
	}
	if exists {
		return "", nil
	}

	doc, err := blocks.NewDefaultDocument(registry, siteName)
	if err != nil {
		return "", fmt.Errorf("failed to build default document: %w", err)
	}
	pages, _ := json.Marshal(doc.Pages)
	header, _ := json.Marshal(doc.HeaderContent)
	footer, _ := json.Marshal(doc.FooterContent)
	theme, _ := json.Marshal(doc.ThemeSettings)

	siteID := security.GenerateULID()
	now := time.Now().UTC()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO sites (id, name, created) VALUES (?, ?, ?)`, siteID, siteName, now); err != nil {
		return "", fmt.Errorf("failed to insert default site: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO site_documents (site_id, pages, header_content, footer_content, theme_settings, revision, changed) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		siteID, string(pages), string(header), string(footer), string(theme), now); err != nil {
		return "", fmt.Errorf("failed to insert default document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit seed: %w", err)
	}
	return siteID, nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS sites (id TEXT PRIMARY KEY, name TEXT NOT NULL, created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, changed TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS site_documents (site_id TEXT PRIMARY KEY REFERENCES sites(id) ON DELETE CASCADE, pages TEXT NOT NULL, header_content TEXT NOT NULL, footer_content TEXT NOT NULL, theme_settings TEXT NOT NULL, revision INTEGER NOT NULL DEFAULT 1, changed TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS saved_blocks (id TEXT PRIMARY KEY, site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE, name TEXT NOT NULL, name_key TEXT NOT NULL, block TEXT NOT NULL, created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, UNIQUE(site_id, name_key))`,
	`CREATE TABLE IF NOT EXISTS editor_preferences (site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE, surface TEXT NOT NULL, collapsed TEXT NOT NULL, changed TIMESTAMP, PRIMARY KEY (site_id, surface))`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_saved_blocks_site_id ON saved_blocks(site_id)`,
	`CREATE INDEX IF NOT EXISTS idx_editor_preferences_site_id ON editor_preferences(site_id)`,
}
