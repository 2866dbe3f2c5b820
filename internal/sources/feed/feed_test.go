package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thocc/newsrelay/internal/domain"
)

const boardFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Interest Checks</title>
    <link>https://geekhack.org/index.php?board=132.0</link>
    <item>
      <title>[IC] Tofu60 Redux</title>
      <link>https://geekhack.org/index.php?topic=1.0</link>
      <guid>https://geekhack.org/index.php?topic=1.msg1#msg1</guid>
      <pubDate>Sun, 01 Jun 2025 09:30:00 GMT</pubDate>
    </item>
    <item>
      <title>Re: [IC] Tofu60 Redux</title>
      <link>https://geekhack.org/index.php?topic=1.0</link>
      <guid>https://geekhack.org/index.php?topic=1.msg2#msg2</guid>
      <pubDate>Sun, 01 Jun 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>  [GB] GMK Olivia  </title>
      <link>https://geekhack.org/index.php?topic=2.0</link>
      <pubDate>Sat, 31 May 2025 22:15:00 GMT</pubDate>
    </item>
    <item>
      <title>No date</title>
      <guid>https://geekhack.org/index.php?topic=3.0</guid>
    </item>
    <item>
      <title></title>
      <guid>https://geekhack.org/index.php?topic=4.0</guid>
      <pubDate>Sat, 31 May 2025 22:15:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

func newAdapter(t *testing.T, url string) *Adapter {
	t.Helper()
	return New(Config{
		Name:      "geekhack-ic",
		URL:       url,
		SourceID:  domain.SourceGeekhack,
		Timeout:   time.Second,
		UserAgent: "newsrelay-test",
		Stamp:     domain.TimeFormat{Layout: "02.01.2006 15:04", Location: moscow(t), Label: "UTC+3"},
	}, nil)
}

func TestAdapter_Produce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "newsrelay-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(boardFeed))
	}))
	defer server.Close()

	a := newAdapter(t, server.URL)
	seq, err := a.Produce(context.Background())
	require.NoError(t, err)

	items := slices.Collect(seq)
	require.Len(t, items, 2)

	assert.Equal(t, domain.CandidateItem{
		DisplayName:  "[IC] Tofu60 Redux",
		OriginalName: "[IC] Tofu60 Redux",
		Link:         "https://geekhack.org/index.php?topic=1.msg1#msg1",
		SourceID:     domain.SourceGeekhack,
		Timestamp:    "01.06.2025 12:30 UTC+3",
	}, items[0])

	assert.Equal(t, "[GB] GMK Olivia", items[1].DisplayName)
	assert.Equal(t, "https://geekhack.org/index.php?topic=2.0", items[1].Link, "link used when guid is missing")
	assert.Equal(t, "01.06.2025 01:15 UTC+3", items[1].Timestamp)
}

func TestAdapter_Produce_SkipsReplies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(boardFeed))
	}))
	defer server.Close()

	seq, err := newAdapter(t, server.URL).Produce(context.Background())
	require.NoError(t, err)

	for item := range seq {
		assert.NotContains(t, item.DisplayName, "Re:")
	}
}

func TestAdapter_Produce_StopsEarly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(boardFeed))
	}))
	defer server.Close()

	seq, err := newAdapter(t, server.URL).Produce(context.Background())
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestAdapter_Produce_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"bad status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"not a feed", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("this is not xml"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			seq, err := newAdapter(t, server.URL).Produce(context.Background())
			assert.Error(t, err)
			assert.Nil(t, seq)
		})
	}
}

func TestAdapter_Identity(t *testing.T) {
	a := newAdapter(t, "http://localhost")
	assert.Equal(t, "geekhack-ic", a.Name())
	assert.Equal(t, domain.SourceGeekhack, a.SourceID())
}
