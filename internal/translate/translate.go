// Package translate translates short titles through an external HTTP
// endpoint. Failures never reach the caller: the input is returned as is.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/text/language"
)

// ErrEmptyTranslation is returned when the endpoint answers without text.
var ErrEmptyTranslation = errors.New("empty translation")

// Config holds translator settings.
type Config struct {
	Endpoint       string
	TargetLanguage string
	Timeout        time.Duration
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Zero disables the breaker.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Translator calls the translation endpoint behind a circuit breaker.
type Translator struct {
	endpoint   string
	target     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
}

type response struct {
	DestinationText string `json:"destination-text"`
}

// New creates a translator. httpClient may be nil.
func New(config Config, httpClient *http.Client) (*Translator, error) {
	if _, err := url.ParseRequestURI(config.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	tag, err := language.Parse(config.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid target language %q: %w", config.TargetLanguage, err)
	}
	base, _ := tag.Base()

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	t := &Translator{
		endpoint:   config.Endpoint,
		target:     base.String(),
		timeout:    config.Timeout,
		httpClient: httpClient,
	}

	threshold := config.FailureThreshold
	t.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "translate",
		MaxRequests: 1,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("translation breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return t, nil
}

// Target returns the normalized target language.
func (t *Translator) Target() string {
	return t.target
}

// Translate returns text translated into the target language, or text
// unchanged on any failure.
func (t *Translator) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	out, err := t.breaker.Execute(func() (string, error) {
		return t.fetch(ctx, text)
	})
	if err != nil {
		result := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "skipped"
		}
		recordTranslation(result)
		slog.Warn("translation failed, keeping original", "text", text, "error", err)
		return text
	}

	recordTranslation("translated")
	return out
}

func (t *Translator) fetch(ctx context.Context, text string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("dl", t.target)
	q.Set("text", text)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(body.DestinationText) == "" {
		return "", ErrEmptyTranslation
	}
	return body.DestinationText, nil
}
