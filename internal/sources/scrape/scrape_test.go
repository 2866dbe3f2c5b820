package scrape

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thocc/newsrelay/internal/domain"
)

const flowPage = `<html><body>
<div class="flow">
  <div class="right">
    <a href="/app/flow/101">
      <div class="article-title f-16 fw-b">机械键盘 <span class="tag">热</span></div>
      <div class="pic-grid multiple">
        <img data-src="https://img.zfrontier.com/a.jpg" src="data:image/gif;base64,R0lG">
        <img src="https://img.zfrontier.com/b.jpg">
      </div>
    </a>
    <div class="user-line f-16 flex-center-v"><span>3小时前</span></div>
  </div>
  <div class="right">
    <a href="/app/flow/102">
      <div class="f-15 fw-b ellipsis_4 short-flow-article">客制化套件</div>
      <div class="pic-grid"><img src="https://img.zfrontier.com/c.jpg"></div>
    </a>
  </div>
  <div class="right">
    <a href="/app/flow/103"><div class="pic-grid"></div></a>
  </div>
  <div class="right">
    <div class="article-title f-16 fw-b">无链接</div>
  </div>
</div>
</body></html>`

type fakeLoader struct {
	html string
	err  error
	urls []string
}

func (f *fakeLoader) Load(_ context.Context, pageURL string) (string, error) {
	f.urls = append(f.urls, pageURL)
	return f.html, f.err
}

func testConfig() Config {
	return Config{
		Name:           "zfrontier",
		PageURL:        "https://www.zfrontier.com/app/#info",
		BaseURL:        "https://www.zfrontier.com",
		SourceID:       domain.SourceZFrontier,
		TitleMaxLength: 200,
		Selectors: Selectors{
			Block:          "div.right",
			Title:          "div.article-title.f-16.fw-b",
			TitleFallback:  "div.f-15.fw-b.ellipsis_4.short-flow-article",
			Link:           "div.right > a",
			Timestamp:      "div.right > div.user-line.f-16.flex-center-v > span",
			Photos:         "a > div.pic-grid.multiple img",
			PhotosFallback: "a > div.pic-grid img",
		},
		Stamp: domain.TimeFormat{Layout: "2006.01.02 15:04", Location: time.UTC, Label: "UTC+3"},
	}
}

func newTestAdapter(t *testing.T, loader PageLoader) *Adapter {
	t.Helper()
	a, err := New(testConfig(), loader)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return a
}

func TestAdapter_Produce(t *testing.T) {
	loader := &fakeLoader{html: flowPage}
	a := newTestAdapter(t, loader)

	seq, err := a.Produce(context.Background())
	require.NoError(t, err)
	items := slices.Collect(seq)

	assert.Equal(t, []string{"https://www.zfrontier.com/app/#info"}, loader.urls)
	require.Len(t, items, 2)

	assert.Equal(t, domain.CandidateItem{
		DisplayName:  "机械键盘",
		OriginalName: "机械键盘",
		Link:         "https://www.zfrontier.com/app/flow/101",
		SourceID:     domain.SourceZFrontier,
		Timestamp:    "2025.06.01 09:30 UTC+3",
		PhotoURLs:    []string{"https://img.zfrontier.com/a.jpg", "https://img.zfrontier.com/b.jpg"},
	}, items[0])

	assert.Equal(t, "客制化套件", items[1].DisplayName, "fallback title selector")
	assert.Equal(t, "https://www.zfrontier.com/app/flow/102", items[1].Link)
	assert.Equal(t, []string{"https://img.zfrontier.com/c.jpg"}, items[1].PhotoURLs, "fallback photo selector")
}

func TestAdapter_Produce_TruncatesTitle(t *testing.T) {
	long := strings.Repeat("键", 300)
	page := `<div class="right"><a href="/app/flow/1"><div class="article-title f-16 fw-b">` + long + `</div></a></div>`

	seq, err := newTestAdapter(t, &fakeLoader{html: page}).Produce(context.Background())
	require.NoError(t, err)
	items := slices.Collect(seq)

	require.Len(t, items, 1)
	assert.Equal(t, 200, len([]rune(items[0].DisplayName)))
	assert.Empty(t, items[0].PhotoURLs)
}

func TestAdapter_Produce_LoadError(t *testing.T) {
	loader := &fakeLoader{err: errors.New("navigation timeout")}

	seq, err := newTestAdapter(t, loader).Produce(context.Background())
	assert.ErrorContains(t, err, "navigation timeout")
	assert.Nil(t, seq)
}

func TestAdapter_Produce_EmptyPage(t *testing.T) {
	seq, err := newTestAdapter(t, &fakeLoader{html: "<html></html>"}).Produce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestNew_InvalidBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = "not-a-url"
	_, err := New(cfg, &fakeLoader{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "abc", truncate("abc", 0))
}
