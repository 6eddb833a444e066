// Package content provides the site document repository
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/repositories"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/persistence/database"
)

// DocumentRepository stores each document area as a JSON column.
type DocumentRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewDocumentRepository(db *sql.DB, logger *logging.ChanneledLogger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

func (r *DocumentRepository) Find(ctx context.Context, siteID string) (*blocks.SiteDocument, error) {
	start := time.Now()
	var pages, header, footer, theme string
	err := r.db.QueryRowContext(ctx,
		`SELECT pages, header_content, footer_content, theme_settings FROM site_documents WHERE site_id = ?`, siteID).
		Scan(&pages, &header, &footer, &theme)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document for site %s: %w", siteID, repositories.ErrNotFound)
	}
	if err != nil {
		r.logger.Database().Error("Document lookup failed", "error", err.Error(), "siteId", siteID)
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var doc blocks.SiteDocument
	for _, part := range []struct {
		raw string
		dst any
	}{
		{pages, &doc.Pages},
		{header, &doc.HeaderContent},
		{footer, &doc.FooterContent},
		{theme, &doc.ThemeSettings},
	} {
		if err := json.Unmarshal([]byte(part.raw), part.dst); err != nil {
			r.logger.Database().Error("Stored document is corrupt", "error", err.Error(), "siteId", siteID)
			return nil, fmt.Errorf("failed to decode stored document: %w", err)
		}
	}

	// Round trip through the map form to normalise empty areas.
	m, err := doc.ToMap()
	if err != nil {
		return nil, err
	}
	out, err := blocks.DocumentFromMap(m)
	if err != nil {
		return nil, err
	}
	database.CheckAndLogSlowQuery(r.logger, "DOCUMENT_FIND", time.Since(start), siteID)
	return out, nil
}

func (r *DocumentRepository) Save(ctx context.Context, siteID string, doc *blocks.SiteDocument) (int, error) {
	cols, err := encodeDocument(doc)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing document update", "siteId", siteID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE site_documents SET pages = ?, header_content = ?, footer_content = ?, theme_settings = ?, revision = revision + 1, changed = ? WHERE site_id = ?`,
		cols.pages, cols.header, cols.footer, cols.theme, now, siteID)
	if err != nil {
		r.logger.Database().Error("Document update failed", "error", err.Error(), "siteId", siteID)
		return 0, fmt.Errorf("failed to update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("document for site %s: %w", siteID, repositories.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sites SET changed = ? WHERE id = ?`, now, siteID); err != nil {
		return 0, fmt.Errorf("failed to touch site: %w", err)
	}

	var revision int
	if err := tx.QueryRowContext(ctx, `SELECT revision FROM site_documents WHERE site_id = ?`, siteID).Scan(&revision); err != nil {
		return 0, fmt.Errorf("failed to read revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit document: %w", err)
	}

	r.logger.Database().Info("Document update completed", "siteId", siteID, "revision", revision, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, "BULK_DOCUMENT_SAVE", time.Since(start), siteID)
	return revision, nil
}
