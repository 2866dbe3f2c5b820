package app

import (
	"fmt"
	"log/slog"

	"github.com/thocc/newsrelay/internal/config"
	"github.com/thocc/newsrelay/internal/dedup"
	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/ingest"
	"github.com/thocc/newsrelay/internal/news"
	"github.com/thocc/newsrelay/internal/pkg/browser"
	"github.com/thocc/newsrelay/internal/scheduler"
	"github.com/thocc/newsrelay/internal/sources/feed"
	"github.com/thocc/newsrelay/internal/sources/scrape"
	"github.com/thocc/newsrelay/internal/translate"
)

// setupSources registers one ingest loop per configured source. Loops for
// the same source share a dedup filter.
func (a *App) setupSources(newsService *news.Service) error {
	cfg := a.config
	filters := make(map[domain.SourceID]*dedup.Filter)
	filterFor := func(id domain.SourceID) *dedup.Filter {
		f, ok := filters[id]
		if !ok {
			f = dedup.NewFilter(id, newsService, cfg.Dedup.Epoch)
			filters[id] = f
		}
		return f
	}

	var translator ingest.Translator
	if cfg.Translate.Enabled {
		t, err := translate.New(translate.Config{
			Endpoint:         cfg.Translate.Endpoint,
			TargetLanguage:   cfg.Translate.TargetLanguage,
			Timeout:          cfg.Translate.Timeout,
			FailureThreshold: cfg.Translate.FailureThreshold,
			OpenTimeout:      cfg.Translate.OpenTimeout,
		}, nil)
		if err != nil {
			return fmt.Errorf("create translator: %w", err)
		}
		translator = t
	}

	if cfg.Feeds.Enabled {
		stamp := a.stamp(cfg.Feeds.Layout)
		for _, ep := range cfg.Feeds.Endpoints {
			source := domain.SourceID(ep.SourceID)
			adapter := feed.New(feed.Config{
				Name:      ep.Name,
				URL:       ep.URL,
				SourceID:  source,
				Timeout:   cfg.Feeds.Timeout,
				UserAgent: cfg.Feeds.UserAgent,
				Stamp:     stamp,
			}, nil)

			pipeline := ingest.NewPipeline(ingest.Config{Pin: ep.Pin, ItemDelay: cfg.Ingest.ItemDelay},
				adapter, filterFor(source), nil, newsService, a.dispatcher)
			a.scheduler.AddIngest(scheduler.NewIngestService(pipeline, cfg.Feeds.Interval))
			slog.Info("feed source registered", "name", ep.Name, "source", source, "url", ep.URL)
		}
	}

	if cfg.Scrape.Enabled {
		adapter, err := a.scrapeAdapter(cfg.Scrape)
		if err != nil {
			return err
		}

		var tr ingest.Translator
		if cfg.Scrape.Translate {
			tr = translator
		}
		pipeline := ingest.NewPipeline(ingest.Config{ItemDelay: cfg.Ingest.ItemDelay},
			adapter, filterFor(domain.SourceZFrontier), tr, newsService, a.dispatcher)
		a.scheduler.AddIngest(scheduler.NewIngestService(pipeline, cfg.Scrape.Interval))
		slog.Info("scrape source registered", "name", adapter.Name(), "url", cfg.Scrape.PageURL)
	}

	return nil
}

func (a *App) scrapeAdapter(cfg config.ScrapeConfig) (*scrape.Adapter, error) {
	a.browser = browser.NewSession(browser.Config{
		Bin:          cfg.Browser.Bin,
		RemoteURL:    cfg.Browser.RemoteURL,
		Headless:     cfg.Browser.Headless,
		BlockImages:  cfg.Browser.BlockImages,
		Settle:       cfg.Browser.Settle,
		NavTimeout:   cfg.Browser.NavTimeout,
		ParkURL:      cfg.Browser.ParkURL,
		RecycleAfter: cfg.Browser.RecycleAfter,
	})

	adapter, err := scrape.New(scrape.Config{
		Name:           "zfrontier",
		PageURL:        cfg.PageURL,
		BaseURL:        cfg.BaseURL,
		SourceID:       domain.SourceZFrontier,
		TitleMaxLength: cfg.TitleMaxLength,
		Selectors: scrape.Selectors{
			Block:          cfg.Selectors.Block,
			Title:          cfg.Selectors.Title,
			TitleFallback:  cfg.Selectors.TitleFallback,
			Link:           cfg.Selectors.Link,
			Timestamp:      cfg.Selectors.Timestamp,
			Photos:         cfg.Selectors.Photos,
			PhotosFallback: cfg.Selectors.PhotosFallback,
		},
		Stamp: a.stamp(cfg.Layout),
	}, a.browser)
	if err != nil {
		return nil, fmt.Errorf("create scrape adapter: %w", err)
	}
	return adapter, nil
}

func (a *App) stamp(layout string) domain.TimeFormat {
	return domain.TimeFormat{
		Layout:   layout,
		Location: a.config.Ingest.Location(),
		Label:    a.config.Ingest.TimeZoneLabel,
	}
}
