// Package content provides the editor preferences repository
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
)

type PreferencesRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewPreferencesRepository(db *sql.DB, logger *logging.ChanneledLogger) *PreferencesRepository {
	return &PreferencesRepository{db: db, logger: logger}
}

// Find returns the stored preferences, or empty preferences when none exist.
func (r *PreferencesRepository) Find(ctx context.Context, siteID, surface string) (*content.EditorPreferences, error) {
	prefs := &content.EditorPreferences{SiteID: siteID, Surface: surface, Collapsed: []string{}}

	var raw string
	var changed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT collapsed, changed FROM editor_preferences WHERE site_id = ? AND surface = ?`, siteID, surface).
		Scan(&raw, &changed)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		r.logger.Database().Error("Preferences lookup failed", "error", err.Error(), "siteId", siteID, "surface", surface)
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &prefs.Collapsed); err != nil {
		r.logger.Database().Warn("Discarding corrupt preferences", "error", err.Error(), "siteId", siteID, "surface", surface)
		prefs.Collapsed = []string{}
	}
	if changed.Valid {
		prefs.Changed = &changed.Time
	}
	return prefs, nil
}

func (r *PreferencesRepository) Save(ctx context.Context, prefs *content.EditorPreferences) error {
	collapsed := prefs.Collapsed
	if collapsed == nil {
		collapsed = []string{}
	}
	raw, _ := json.Marshal(collapsed)
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO editor_preferences (site_id, surface, collapsed, changed) VALUES (?, ?, ?, ?)
		 ON CONFLICT(site_id, surface) DO UPDATE SET collapsed = excluded.collapsed, changed = excluded.changed`,
		prefs.SiteID, prefs.Surface, string(raw), now)
	if err != nil {
		r.logger.Database().Error("Preferences save failed", "error", err.Error(), "siteId", prefs.SiteID, "surface", prefs.Surface)
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	prefs.Changed = &now
	return nil
}
