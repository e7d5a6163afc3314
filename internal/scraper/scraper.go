// Package scraper fetches brand homepages and reduces them to readable text.
package scraper

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

const (
	// MaxPageChars caps the text handed to the summarizer
	MaxPageChars     = 5000
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; BrandVisibilityBot/1.0)"
)

// Fetcher implements common.PageFetcher with colly and go-readability.
type Fetcher struct {
	timeout   time.Duration
	userAgent string
	logger    zerolog.Logger
}

type Option func(*Fetcher)

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func New(timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	f := &Fetcher{timeout: timeout, userAgent: defaultUserAgent, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With().Str("component", "scraper").Logger()
	return f
}

// FetchPageText returns the main text of pageURL, whitespace-collapsed and
// capped at MaxPageChars. Any failure yields "".
func (f *Fetcher) FetchPageText(ctx context.Context, pageURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		f.logger.Warn().Str("url", pageURL).Msg("[FetchPageText] invalid url")
		return ""
	}
	if ctx.Err() != nil {
		return ""
	}

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(timeout)

	var body []byte
	var bodyText string
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnHTML("body", func(e *colly.HTMLElement) {
		bodyText = e.Text
	})
	c.OnError(func(r *colly.Response, err error) {
		f.logger.Warn().Err(err).Str("url", pageURL).Int("status", r.StatusCode).Msg("[FetchPageText] fetch failed")
	})

	if err := c.Visit(parsed.String()); err != nil {
		f.logger.Warn().Err(err).Str("url", pageURL).Msg("[FetchPageText] visit failed")
		return ""
	}
	if len(body) == 0 {
		return ""
	}

	text := ""
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil {
		text = article.TextContent
	}
	if strings.TrimSpace(text) == "" {
		text = bodyText
	}
	return Clean(text)
}

// Clean collapses whitespace and truncates to MaxPageChars runes.
func Clean(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > MaxPageChars {
		return string(r[:MaxPageChars])
	}
	return text
}
