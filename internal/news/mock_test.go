package news

import (
	"context"
	"sync"

	"github.com/thocc/newsrelay/internal/domain"
)

// mockRepository is an in-memory Repository.
type mockRepository struct {
	mu        sync.Mutex
	items     []domain.News
	nextID    int64
	createErr error
	listErr   error
}

func (m *mockRepository) Create(_ context.Context, n *domain.News) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.items {
		if existing.Link == n.Link {
			return ErrNewsExists
		}
	}
	m.nextID++
	n.ID = m.nextID
	m.items = append(m.items, *n)
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id int64) (*domain.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, ErrNewsNotFound
}

func (m *mockRepository) FindByName(_ context.Context, originalName string, source domain.SourceID) (*domain.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.OriginalName == originalName && n.SourceID == source {
			return &n, nil
		}
	}
	return nil, ErrNewsNotFound
}

func (m *mockRepository) FindByLink(_ context.Context, link string) (*domain.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.Link == link {
			return &n, nil
		}
	}
	return nil, ErrNewsNotFound
}

func (m *mockRepository) List(_ context.Context) ([]domain.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.News(nil), m.items...), nil
}

type recordingAnnouncer struct {
	mu    sync.Mutex
	items []domain.CandidateItem
}

func (a *recordingAnnouncer) Announce(_ context.Context, item domain.CandidateItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, item)
}
