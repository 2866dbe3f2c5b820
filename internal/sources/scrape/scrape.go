// Package scrape extracts candidate items from a browser-rendered page.
package scrape

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/thocc/newsrelay/internal/domain"
)

// PageLoader returns the rendered HTML of a page. *browser.Session
// implements it.
type PageLoader interface {
	Load(ctx context.Context, pageURL string) (string, error)
}

// Selectors locate the parts of one article block.
type Selectors struct {
	Block          string
	Title          string
	TitleFallback  string
	Link           string
	Timestamp      string
	Photos         string
	PhotosFallback string
}

// Config configures the adapter.
type Config struct {
	Name           string
	PageURL        string
	BaseURL        string
	SourceID       domain.SourceID
	TitleMaxLength int
	Selectors      Selectors
	Stamp          domain.TimeFormat
}

// Adapter scrapes one page through a PageLoader.
type Adapter struct {
	cfg    Config
	base   *url.URL
	loader PageLoader
	now    func() time.Time
}

// New creates a scrape adapter.
func New(cfg Config, loader PageLoader) (*Adapter, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	return &Adapter{
		cfg:    cfg,
		base:   base,
		loader: loader,
		now:    time.Now,
	}, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// SourceID returns the scraped source.
func (a *Adapter) SourceID() domain.SourceID {
	return a.cfg.SourceID
}

// Produce loads the page and yields one item per article block with a
// title and link.
func (a *Adapter) Produce(ctx context.Context) (iter.Seq[domain.CandidateItem], error) {
	html, err := a.loader.Load(ctx, a.cfg.PageURL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.cfg.PageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.cfg.PageURL, err)
	}

	blocks := doc.Find(a.cfg.Selectors.Block)
	slog.Info("page loaded", "source", a.cfg.Name, "blocks", blocks.Length())

	return func(yield func(domain.CandidateItem) bool) {
		blocks.EachWithBreak(func(_ int, block *goquery.Selection) bool {
			item, ok := a.extract(block)
			if !ok {
				return true
			}
			return yield(item)
		})
	}, nil
}

func (a *Adapter) extract(block *goquery.Selection) (domain.CandidateItem, bool) {
	sel := a.cfg.Selectors

	title := ownText(block.Find(sel.Title).First())
	if title == "" && sel.TitleFallback != "" {
		title = ownText(block.Find(sel.TitleFallback).First())
	}
	if title == "" {
		slog.Debug("skipping block without title", "source", a.cfg.Name)
		return domain.CandidateItem{}, false
	}
	title = truncate(title, a.cfg.TitleMaxLength)

	href, _ := block.Find(sel.Link).First().Attr("href")
	link, ok := a.resolve(href)
	if !ok {
		slog.Debug("skipping block without link", "source", a.cfg.Name, "title", title)
		return domain.CandidateItem{}, false
	}

	if sel.Timestamp != "" {
		slog.Debug("scraped item", "source", a.cfg.Name, "title", title,
			"link", link, "published", ownText(block.Find(sel.Timestamp).First()))
	}

	return domain.CandidateItem{
		DisplayName:  title,
		OriginalName: title,
		Link:         link,
		SourceID:     a.cfg.SourceID,
		Timestamp:    a.cfg.Stamp.Format(a.now()),
		PhotoURLs:    a.photos(block),
	}, true
}

func (a *Adapter) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return a.base.ResolveReference(ref).String(), true
}

func (a *Adapter) photos(block *goquery.Selection) []string {
	sel := a.cfg.Selectors
	if sel.Photos == "" {
		return nil
	}

	imgs := block.Find(sel.Photos)
	if imgs.Length() == 0 && sel.PhotosFallback != "" {
		imgs = block.Find(sel.PhotosFallback)
	}

	var out []string
	imgs.Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("data-src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("src", ""))
		}
		if src != "" {
			out = append(out, src)
		}
	})
	return out
}

// ownText joins the text nodes that are direct children of s.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
