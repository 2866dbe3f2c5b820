package notifications

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/thocc/newsrelay/internal/domain"
)

// Chat API limits.
const (
	MaxTextLength    = 4096
	MaxCaptionLength = 1024
	MaxAlbumSize     = 10
)

// Caption renders "[<tag>] <name> - <link>".
func Caption(item domain.CandidateItem) string {
	return fmt.Sprintf("[%s] %s - %s", item.SourceID.Tag(), item.DisplayName, item.Link)
}

// Render builds a job for item. Photos are filtered to absolute http(s)
// URLs, de-duplicated and capped; the mode follows the number that remain.
func Render(chatID string, item domain.CandidateItem, pin bool, maxAttempts int) *Job {
	photos := UsablePhotos(item.PhotoURLs)

	mode := ModeText
	switch {
	case len(photos) >= 2:
		mode = ModeAlbum
	case len(photos) == 1:
		mode = ModeSinglePhoto
	}

	return &Job{
		ID:          newJobID(),
		ChatID:      chatID,
		Caption:     Caption(item),
		PhotoURLs:   photos,
		Mode:        mode,
		Pin:         pin,
		MaxAttempts: maxAttempts,
	}
}

// UsablePhotos keeps well-formed absolute http(s) URLs in order, without
// duplicates, up to MaxAlbumSize.
func UsablePhotos(raw []string) []string {
	out := make([]string, 0, min(len(raw), MaxAlbumSize))
	seen := make(map[string]struct{}, len(raw))

	for _, s := range raw {
		s = strings.TrimSpace(s)
		if !isHTTPURL(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == MaxAlbumSize {
			break
		}
	}
	return out
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
