package news

import (
	"context"

	"github.com/thocc/newsrelay/internal/domain"
)

// Repository defines storage operations for news records.
type Repository interface {
	Create(ctx context.Context, n *domain.News) error
	GetByID(ctx context.Context, id int64) (*domain.News, error)
	FindByName(ctx context.Context, originalName string, source domain.SourceID) (*domain.News, error)
	FindByLink(ctx context.Context, link string) (*domain.News, error)
	List(ctx context.Context) ([]domain.News, error)
}
