// Package content provides the saved block repository
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/domain/repositories"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/persistence/database"
)

type LibraryRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewLibraryRepository(db *sql.DB, logger *logging.ChanneledLogger) *LibraryRepository {
	return &LibraryRepository{db: db, logger: logger}
}

// NameKey is the case-insensitive uniqueness key of a saved block name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *LibraryRepository) FindAll(ctx context.Context, siteID string) ([]*content.SavedBlock, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, site_id, name, block, created FROM saved_blocks WHERE site_id = ? ORDER BY name_key`, siteID)
	if err != nil {
		r.logger.Database().Error("Library list failed", "error", err.Error(), "siteId", siteID)
		return nil, fmt.Errorf("failed to list saved blocks: %w", err)
	}
	defer rows.Close()

	out := []*content.SavedBlock{}
	for rows.Next() {
		saved, err := scanSavedBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved blocks: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, "LIBRARY_FIND_ALL", time.Since(start), siteID)
	return out, nil
}

func (r *LibraryRepository) FindByID(ctx context.Context, siteID, id string) (*content.SavedBlock, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, site_id, name, block, created FROM saved_blocks WHERE site_id = ? AND id = ?`, siteID, id)
	saved, err := scanSavedBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("saved block %s: %w", id, repositories.ErrNotFound)
	}
	return saved, err
}

// Store inserts a saved block. A name clash within the site yields repositories.ErrConflict.
func (r *LibraryRepository) Store(ctx context.Context, saved *content.SavedBlock) error {
	raw, err := json.Marshal(saved.Block)
	if err != nil {
		return fmt.Errorf("failed to encode saved block: %w", err)
	}

	start := time.Now()
	r.logger.Database().Debug("Executing saved block insert", "id", saved.ID, "siteId", saved.SiteID)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO saved_blocks (id, site_id, name, name_key, block, created) VALUES (?, ?, ?, ?, ?, ?)`,
		saved.ID, saved.SiteID, saved.Name, NameKey(saved.Name), string(raw), saved.Created)
	if isUniqueViolation(err) {
		return fmt.Errorf("saved block %q: %w", saved.Name, repositories.ErrConflict)
	}
	if err != nil {
		r.logger.Database().Error("Saved block insert failed", "error", err.Error(), "id", saved.ID)
		return fmt.Errorf("failed to insert saved block: %w", err)
	}

	r.logger.Database().Info("Saved block insert completed", "id", saved.ID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, "LIBRARY_STORE", time.Since(start), saved.SiteID)
	return nil
}

func (r *LibraryRepository) Delete(ctx context.Context, siteID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_blocks WHERE site_id = ? AND id = ?`, siteID, id)
	if err != nil {
		r.logger.Database().Error("Saved block delete failed", "error", err.Error(), "id", id)
		return fmt.Errorf("failed to delete saved block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("saved block %s: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func scanSavedBlock(row rowScanner) (*content.SavedBlock, error) {
	var saved content.SavedBlock
	var raw string
	if err := row.Scan(&saved.ID, &saved.SiteID, &saved.Name, &raw, &saved.Created); err != nil {
		return nil, err
	}
	var b blocks.Block
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("failed to decode saved block %s: %w", saved.ID, err)
	}
	saved.Block = &b
	return &saved, nil
}
