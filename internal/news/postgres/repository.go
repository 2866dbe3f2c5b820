// Package postgres provides PostgreSQL implementation of the news repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/news"
	"github.com/thocc/newsrelay/internal/pkg/postgres"
)

// Repository implements news.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, name, originalname, link, source_id, timestamp`

// Create inserts a news record and sets its ID.
func (r *Repository) Create(ctx context.Context, n *domain.News) error {
	query := `
		INSERT INTO news (name, originalname, link, source_id, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		n.Name,
		n.OriginalName,
		n.Link,
		int(n.SourceID),
		n.Timestamp,
	).Scan(&n.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return news.ErrNewsExists
		}
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

// GetByID retrieves a record by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.News, error) {
	query := `SELECT ` + selectColumns + ` FROM news WHERE id = $1`
	return r.getOne(ctx, "get news by id", query, id)
}

// FindByName retrieves the oldest record with the given original name and source.
func (r *Repository) FindByName(ctx context.Context, originalName string, source domain.SourceID) (*domain.News, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM news
		WHERE originalname = $1 AND source_id = $2
		ORDER BY id
		LIMIT 1
	`
	return r.getOne(ctx, "find news by name", query, originalName, int(source))
}

// FindByLink retrieves the record with the given link.
func (r *Repository) FindByLink(ctx context.Context, link string) (*domain.News, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM news
		WHERE link = $1
		LIMIT 1
	`
	return r.getOne(ctx, "find news by link", query, link)
}

// List returns all records ordered by id.
func (r *Repository) List(ctx context.Context) ([]domain.News, error) {
	query := `SELECT ` + selectColumns + ` FROM news ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	var items []domain.News
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		items = append(items, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news: %w", err)
	}
	return items, nil
}

func (r *Repository) getOne(ctx context.Context, op, query string, args ...any) (*domain.News, error) {
	n, err := scan(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, news.ErrNewsNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func scan(row pgx.Row) (*domain.News, error) {
	var n domain.News
	var source int
	if err := row.Scan(&n.ID, &n.Name, &n.OriginalName, &n.Link, &source, &n.Timestamp); err != nil {
		return nil, err
	}
	n.SourceID = domain.SourceID(source)
	return &n, nil
}
