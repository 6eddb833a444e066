// Package library manages a site's saved, reusable blocks.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/domain/repositories"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/security"
	"github.com/samber/lo"
)

var (
	ErrEmptyName     = errors.New("saved block name is required")
	ErrDuplicateName = errors.New("a saved block with this name already exists")
	ErrEmptyBlock    = errors.New("saved block has no content")
)

// ValidateName trims name and checks it against the existing entries,
// ignoring case.
func ValidateName(name string, existing []*content.SavedBlock) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyName
	}
	key := strings.ToLower(trimmed)
	if lo.ContainsBy(existing, func(s *content.SavedBlock) bool {
		return strings.ToLower(strings.TrimSpace(s.Name)) == key
	}) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateName, trimmed)
	}
	return trimmed, nil
}

// Instantiate turns a saved block into a fresh tree node: a deep copy with
// new ids throughout and a back-reference to its library entry.
func Instantiate(saved *content.SavedBlock) *blocks.Block {
	b := saved.Block.Clone()
	b.Reidentify()
	b.LibraryOriginID = saved.ID
	return b
}

// Service backs the library routes of the document backend.
type Service struct {
	repo   repositories.LibraryRepository
	logger *logging.ChanneledLogger
}

func NewService(repo repositories.LibraryRepository, logger *logging.ChanneledLogger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, siteID string) ([]*content.SavedBlock, error) {
	return s.repo.FindAll(ctx, siteID)
}

func (s *Service) Get(ctx context.Context, siteID, id string) (*content.SavedBlock, error) {
	return s.repo.FindByID(ctx, siteID, id)
}

// Save validates and stores a copy of b under name.
func (s *Service) Save(ctx context.Context, siteID, name string, b *blocks.Block) (*content.SavedBlock, error) {
	if b == nil || b.Type == "" {
		return nil, ErrEmptyBlock
	}
	existing, err := s.repo.FindAll(ctx, siteID)
	if err != nil {
		return nil, err
	}
	trimmed, err := ValidateName(name, existing)
	if err != nil {
		return nil, err
	}

	saved := &content.SavedBlock{
		ID:      security.GenerateULID(),
		SiteID:  siteID,
		Name:    trimmed,
		Block:   b.Clone(),
		Created: time.Now().UTC(),
	}
	// A library entry is never itself an instance of another entry.
	saved.Block.LibraryOriginID = ""

	if err := s.repo.Store(ctx, saved); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, trimmed)
		}
		return nil, err
	}
	s.logger.Content().Info("Saved block to library", "siteId", siteID, "id", saved.ID, "name", trimmed, "type", b.Type)
	return saved, nil
}

func (s *Service) Delete(ctx context.Context, siteID, id string) error {
	if err := s.repo.Delete(ctx, siteID, id); err != nil {
		return err
	}
	s.logger.Content().Info("Deleted saved block", "siteId", siteID, "id", id)
	return nil
}
