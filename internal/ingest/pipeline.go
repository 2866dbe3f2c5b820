// Package ingest runs one source through dedup, enrichment, storage and
// delivery.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/news"
	"github.com/thocc/newsrelay/internal/notifications"
	"github.com/thocc/newsrelay/internal/pkg/ctxlog"
	"github.com/thocc/newsrelay/internal/sources"
)

// Deduplicator decides whether an item is new and owns the cache epoch.
type Deduplicator interface {
	IsNew(ctx context.Context, item domain.CandidateItem) (bool, error)
	MaybeClear() bool
}

// Translator rewrites display names. It never fails.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Store persists confirmed items.
type Store interface {
	CreateNews(ctx context.Context, item domain.CandidateItem) (*domain.News, error)
}

// Notifier delivers confirmed items.
type Notifier interface {
	Notify(ctx context.Context, item domain.CandidateItem, pin bool) notifications.Outcome
}

// Config holds per-pipeline options.
type Config struct {
	// Pin asks the notifier to pin delivered messages.
	Pin bool
	// ItemDelay separates successive notifications within one cycle.
	ItemDelay time.Duration
}

// Pipeline processes one source. RunOnce is not safe for concurrent use on
// the same Pipeline.
type Pipeline struct {
	cfg        Config
	source     sources.Source
	dedup      Deduplicator
	translator Translator
	store      Store
	notifier   Notifier
}

// NewPipeline creates a pipeline. translator may be nil.
func NewPipeline(cfg Config, source sources.Source, dedup Deduplicator, translator Translator, store Store, notifier Notifier) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		dedup:      dedup,
		translator: translator,
		store:      store,
		notifier:   notifier,
	}
}

// Name returns the source name.
func (p *Pipeline) Name() string {
	return p.source.Name()
}

// Result summarizes one cycle.
type Result struct {
	Produced  int
	New       int
	Stored    int
	Delivered int
}

// RunOnce runs one full cycle. Items are handled strictly in document
// order; each one is stored and delivered (or queued) before the next is
// looked at. The returned error is set only when the source could not be
// read.
func (p *Pipeline) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	name := p.source.Name()
	start := time.Now()
	ctx = ctxlog.With(ctx, "source", name)
	logger := ctxlog.FromContext(ctx)

	defer func() {
		p.dedup.MaybeClear()
		recordCycle(name, time.Since(start))
	}()

	items, err := p.source.Produce(ctx)
	if err != nil {
		recordCycleFailure(name)
		return res, fmt.Errorf("produce %s: %w", name, err)
	}

	for item := range items {
		if ctx.Err() != nil {
			break
		}
		res.Produced++
		recordCandidate(name)

		isNew, err := p.dedup.IsNew(ctx, item)
		if err != nil {
			logger.Error("dedup check failed, skipping item", "link", item.Link, "error", err)
			continue
		}
		if !isNew {
			continue
		}

		if res.New > 0 && !sleep(ctx, p.cfg.ItemDelay) {
			break
		}
		res.New++
		recordNewItem(name)

		stored, delivered := p.process(ctx, item)
		if stored {
			res.Stored++
		}
		if delivered {
			res.Delivered++
		}
	}

	logger.Info("ingest cycle finished",
		"produced", res.Produced,
		"new", res.New,
		"stored", res.Stored,
		"delivered", res.Delivered,
		"duration", time.Since(start),
	)
	return res, nil
}

// process stores and delivers one new item. Storage and delivery are
// independent, except that an item already present in the store is not
// announced again.
func (p *Pipeline) process(ctx context.Context, item domain.CandidateItem) (stored, delivered bool) {
	if p.translator != nil {
		item.DisplayName = p.translator.Translate(ctx, item.OriginalName)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("new item", "name", item.DisplayName, "link", item.Link)

	if _, err := p.store.CreateNews(ctx, item); err != nil {
		if errors.Is(err, news.ErrNewsExists) {
			logger.Warn("item already stored, not announcing", "link", item.Link)
			return false, false
		}
		recordPersistFailure(p.source.Name())
		logger.Error("failed to store item", "link", item.Link, "error", err)
	} else {
		stored = true
	}

	outcome := p.notifier.Notify(ctx, item, p.cfg.Pin)
	return stored, outcome == notifications.Delivered
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
