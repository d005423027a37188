package discover

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// PageConfig controls how the archive index page is fetched.
type PageConfig struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// PageFetcher retrieves the archive index page with a Colly collector.
type PageFetcher struct {
	cfg           PageConfig
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewPageFetcher builds a PageFetcher.
func NewPageFetcher(cfg PageConfig) *PageFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &PageFetcher{cfg: cfg, baseCollector: c}
}

// FetchPage returns the body of pageURL. Transport errors, non-2xx statuses
// and empty bodies are all failures.
func (f *PageFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector()
	configureHooks(collector, &body, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("archive page fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return "", fmt.Errorf("archive page response failed: %w", fetchErr)
		}
		if err != nil {
			return "", fmt.Errorf("archive page visit failed: %w", err)
		}
	}
	if len(body) == 0 {
		return "", errors.New("archive page body is empty")
	}
	return string(body), nil
}

func (f *PageFetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	// Scheduled runs revisit the same index page through a shared visit store.
	collector.AllowURLRevisit = true
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func configureHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			*fetchErr = fmt.Errorf("unexpected status %d", r.StatusCode)
			return
		}
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
