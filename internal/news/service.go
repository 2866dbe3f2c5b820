// Package news stores relayed items and exposes them over HTTP.
package news

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thocc/newsrelay/internal/domain"
)

// Service implements the persistence gateway used by the pipeline and the
// HTTP surface.
type Service struct {
	repo Repository
}

// NewService creates a new news service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateNews stores item. The stored name carries the source tag prefix, the
// original name is kept as given.
func (s *Service) CreateNews(ctx context.Context, item domain.CandidateItem) (*domain.News, error) {
	if !item.SourceID.IsValid() {
		return nil, ErrInvalidSource
	}

	n := item.ToNews()
	n.Name = item.SourceID.Prefix(item.DisplayName)

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create news: %w", err)
	}

	slog.Debug("news stored", "id", n.ID, "name", n.Name, "source", item.SourceID)
	return n, nil
}

// GetByID returns a news record by id.
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.News, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByName returns the record with the given original name and source.
func (s *Service) FindByName(ctx context.Context, originalName string, source domain.SourceID) (*domain.News, error) {
	return s.repo.FindByName(ctx, originalName, source)
}

// FindByLink returns the record with the given link.
func (s *Service) FindByLink(ctx context.Context, link string) (*domain.News, error) {
	return s.repo.FindByLink(ctx, link)
}

// List returns all records.
func (s *Service) List(ctx context.Context) ([]domain.News, error) {
	return s.repo.List(ctx)
}
