// Package content provides the site document repositories
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

type SiteRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewSiteRepository(db *sql.DB, logger *logging.ChanneledLogger) *SiteRepository {
	return &SiteRepository{db: db, logger: logger}
}

const siteSelect = `SELECT s.id, s.name, s.created, s.changed, COALESCE(d.revision, 0), COALESCE(json_array_length(d.pages), 0)
	FROM sites s LEFT JOIN site_documents d ON d.site_id = s.id`

func (r *SiteRepository) FindByID(ctx context.Context, id string) (*content.Site, error) {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, siteSelect+` WHERE s.id = ?`, id)
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %s: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		r.logger.Database().Error("Site lookup failed", "error", err.Error(), "siteId", id)
		return nil, fmt.Errorf("failed to load site: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, "SITE_FIND", time.Since(start), id)
	return site, nil
}

// FindAll lists sites, most recently created first.
func (r *SiteRepository) FindAll(ctx context.Context) ([]*content.Site, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, siteSelect+` ORDER BY s.created DESC, s.id DESC`)
	if err != nil {
		r.logger.Database().Error("Site list failed", "error", err.Error())
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	sites := []*content.Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sites: %w", err)
	}
	database.CheckAndLogSlowQuery(r.logger, "SITE_FIND_ALL", time.Since(start), "system")
	return sites, nil
}

func (r *SiteRepository) Create(ctx context.Context, site *content.Site, doc *blocks.SiteDocument) error {
	cols, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing site insert", "siteId", site.ID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO sites (id, name, created) VALUES (?, ?, ?)`,
		site.ID, site.Name, site.Created); err != nil {
		r.logger.Database().Error("Site insert failed", "error", err.Error(), "siteId", site.ID)
		return fmt.Errorf("failed to insert site: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO site_documents (site_id, pages, header_content, footer_content, theme_settings, revision, changed) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		site.ID, cols.pages, cols.header, cols.footer, cols.theme, site.Created); err != nil {
		r.logger.Database().Error("Site document insert failed", "error", err.Error(), "siteId", site.ID)
		return fmt.Errorf("failed to insert site document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit site: %w", err)
	}

	site.Revision = 1
	site.PageCount = len(doc.Pages)
	r.logger.Database().Info("Site insert completed", "siteId", site.ID, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, "BULK_SITE_CREATE", time.Since(start), site.ID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*content.Site, error) {
	var site content.Site
	var changed sql.NullTime
	if err := row.Scan(&site.ID, &site.Name, &site.Created, &changed, &site.Revision, &site.PageCount); err != nil {
		return nil, err
	}
	if changed.Valid {
		site.Changed = &changed.Time
	}
	return &site, nil
}

type documentColumns struct {
	pages, header, footer, theme string
}

func encodeDocument(doc *blocks.SiteDocument) (documentColumns, error) {
	var cols documentColumns
	for _, part := range []struct {
		dst *string
		v   any
	}{
		{&cols.pages, doc.Pages},
		{&cols.header, doc.HeaderContent},
		{&cols.footer, doc.FooterContent},
		{&cols.theme, doc.ThemeSettings},
	} {
		raw, err := json.Marshal(part.v)
		if err != nil {
			return cols, fmt.Errorf("failed to encode document: %w", err)
		}
		*part.dst = string(raw)
	}
	return cols, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
