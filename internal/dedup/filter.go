// Package dedup decides whether a candidate item has been seen before.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/news"
)

// Lookup is the read side of the persistence gateway.
type Lookup interface {
	FindByName(ctx context.Context, originalName string, source domain.SourceID) (*domain.News, error)
	FindByLink(ctx context.Context, link string) (*domain.News, error)
}

// Filter combines a per-source in-memory seen set with store lookups.
// A Filter is safe for concurrent use; loops polling different feeds of the
// same source share one Filter.
type Filter struct {
	source domain.SourceID
	lookup Lookup
	epoch  time.Duration
	now    func() time.Time

	mu         sync.Mutex
	seen       map[string]struct{}
	epochStart time.Time
}

// NewFilter creates a filter for one source. epoch is the interval between
// cache clears; zero disables clearing.
func NewFilter(source domain.SourceID, lookup Lookup, epoch time.Duration) *Filter {
	f := &Filter{
		source: source,
		lookup: lookup,
		epoch:  epoch,
		now:    time.Now,
		seen:   make(map[string]struct{}),
	}
	f.epochStart = f.now()
	return f
}

// Source returns the source this filter is scoped to.
func (f *Filter) Source() domain.SourceID {
	return f.source
}

// IsNew reports whether item has not been seen by name+source or by link.
// A name confirmed new is registered before IsNew returns, so a repeated
// name in the same pull, or in a concurrent loop, is new only once.
// Lookup failures are returned and leave the cache untouched.
func (f *Filter) IsNew(ctx context.Context, item domain.CandidateItem) (bool, error) {
	if item.SourceID != f.source {
		return false, fmt.Errorf("dedup: item source %s does not match filter source %s", item.SourceID, f.source)
	}
	name := item.OriginalName
	if name == "" {
		return false, nil
	}

	if f.contains(name) {
		recordCacheHit(f.source)
		return false, nil
	}

	found, err := f.exists(ctx, item)
	if err != nil {
		return false, err
	}
	if found {
		f.mark(name)
		return false, nil
	}

	if !f.mark(name) {
		slog.Debug("name claimed concurrently", "source", f.source, "name", name)
		return false, nil
	}
	return true, nil
}

// ClearEpoch wipes the seen set and starts a new epoch.
func (f *Filter) ClearEpoch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearLocked()
}

// MaybeClear clears the seen set when the epoch has elapsed since the last
// clear. It reports whether a clear happened.
func (f *Filter) MaybeClear() bool {
	if f.epoch <= 0 {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.now().Sub(f.epochStart) < f.epoch {
		return false
	}
	size := len(f.seen)
	f.clearLocked()
	slog.Info("dedup cache cleared", "source", f.source, "entries", size)
	return true
}

// Len returns the number of cached names.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *Filter) clearLocked() {
	f.seen = make(map[string]struct{})
	f.epochStart = f.now()
	cacheSize.WithLabelValues(f.source.Tag()).Set(0)
}

func (f *Filter) contains(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[name]
	return ok
}

// mark adds name and reports whether it was absent.
func (f *Filter) mark(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[name]; ok {
		return false
	}
	f.seen[name] = struct{}{}
	cacheSize.WithLabelValues(f.source.Tag()).Set(float64(len(f.seen)))
	return true
}

func (f *Filter) exists(ctx context.Context, item domain.CandidateItem) (bool, error) {
	_, err := f.lookup.FindByName(ctx, item.OriginalName, item.SourceID)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, news.ErrNewsNotFound):
		return false, fmt.Errorf("find by name: %w", err)
	}

	if item.Link == "" {
		return false, nil
	}
	_, err = f.lookup.FindByLink(ctx, item.Link)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, news.ErrNewsNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("find by link: %w", err)
	}
}
