// Package feed adapts RSS documents into candidate items.
package feed

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/thocc/newsrelay/internal/domain"
)

// ReplyPrefix marks forum replies and thread bumps.
const ReplyPrefix = "Re:"

// Config configures one polled feed.
type Config struct {
	Name      string
	URL       string
	SourceID  domain.SourceID
	Timeout   time.Duration
	UserAgent string
	Stamp     domain.TimeFormat
}

// Adapter polls one feed URL.
type Adapter struct {
	cfg    Config
	client *http.Client
	parser *gofeed.Parser
}

// New creates a feed adapter. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Adapter{
		cfg:    cfg,
		client: httpClient,
		parser: gofeed.NewParser(),
	}
}

// Name returns the feed name.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// SourceID returns the source the feed belongs to.
func (a *Adapter) SourceID() domain.SourceID {
	return a.cfg.SourceID
}

// Produce fetches the feed and yields its entries.
func (a *Adapter) Produce(ctx context.Context) (iter.Seq[domain.CandidateItem], error) {
	doc, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}

	return func(yield func(domain.CandidateItem) bool) {
		for _, entry := range doc.Items {
			item, ok := a.candidate(entry)
			if !ok {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}, nil
}

func (a *Adapter) fetch(ctx context.Context) (*gofeed.Feed, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", a.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.cfg.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: unexpected status %d", a.cfg.Name, resp.StatusCode)
	}

	doc, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.cfg.Name, err)
	}
	return doc, nil
}

func (a *Adapter) candidate(entry *gofeed.Item) (domain.CandidateItem, bool) {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		slog.Debug("feed entry without title", "feed", a.cfg.Name)
		return domain.CandidateItem{}, false
	}
	if strings.HasPrefix(title, ReplyPrefix) {
		return domain.CandidateItem{}, false
	}

	link := strings.TrimSpace(entry.GUID)
	if link == "" {
		link = strings.TrimSpace(entry.Link)
	}
	if link == "" {
		slog.Debug("feed entry without link", "feed", a.cfg.Name, "title", title)
		return domain.CandidateItem{}, false
	}

	if entry.PublishedParsed == nil {
		slog.Debug("feed entry without parseable date", "feed", a.cfg.Name, "title", title, "published", entry.Published)
		return domain.CandidateItem{}, false
	}

	return domain.CandidateItem{
		DisplayName:  title,
		OriginalName: title,
		Link:         link,
		SourceID:     a.cfg.SourceID,
		Timestamp:    a.cfg.Stamp.Format(*entry.PublishedParsed),
	}, true
}
