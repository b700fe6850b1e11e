// Package scraper performs the upstream exchange for one work item and
// wraps it with a bounded retry policy.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-hal/config"
	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/parser"
	"github.com/gocolly/colly/v2"
)

const exchangeKey = "exchange"

// Client runs the priming GET and data POST against the listing page.
// A single Fetch call is exactly one attempt; it owns no retry policy.
type Client struct {
	cfg        *config.Config
	collector  *colly.Collector
	classifier *parser.Classifier
	headers    http.Header
	Metrics    *Metrics

	handlersOnce sync.Once
}

// exchange captures one request/response pair through the collector context.
type exchange struct {
	start    time.Time
	status   int
	body     []byte
	received bool
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	headers := make(http.Header, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	headers.Set("User-Agent", cfg.UserAgent)

	c := &Client{
		cfg:        cfg,
		collector:  collector,
		classifier: parser.NewClassifier(cfg.BlockMarkers, cfg.EmptyMarkers),
		headers:    headers,
		Metrics:    metrics,
	}
	c.configureHandlers()
	return c, nil
}

// SetTransport replaces the HTTP transport the collector sends through.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// Classifier returns the response classifier the client parses with.
func (c *Client) Classifier() *parser.Classifier {
	return c.classifier
}

// Fetch performs one logical fetch for item.
func (c *Client) Fetch(ctx context.Context, item models.WorkItem) models.FetchOutcome {
	if err := ctx.Err(); err != nil {
		return models.TransportErrorOutcome(ErrRequest{Step: StepPrime, Err: err})
	}

	prime, err := c.do(http.MethodGet, nil, StepPrime)
	if err != nil {
		return models.TransportErrorOutcome(err)
	}
	if prime.status != http.StatusOK {
		return models.TransportErrorOutcome(ErrStatus{Step: StepPrime, StatusCode: prime.status})
	}
	if marker, ok := c.classifier.Blocked(string(prime.body)); ok {
		return models.BlockedOutcome(&parser.BlockedError{Step: StepPrime, Marker: marker})
	}

	form := url.Values{
		"date": {item.UpstreamDate()},
		"type": {item.Category.Slug},
	}
	data, err := c.do(http.MethodPost, strings.NewReader(form.Encode()), StepData)
	if err != nil {
		return models.TransportErrorOutcome(err)
	}
	if data.status != http.StatusOK {
		return models.TransportErrorOutcome(ErrStatus{Step: StepData, StatusCode: data.status})
	}

	out := parser.ParseListing(data.body, c.classifier)
	var blocked *parser.BlockedError
	if errors.As(out.Err, &blocked) {
		blocked.Step = StepData
	}
	return out
}

func (c *Client) do(method string, body io.Reader, step string) (*exchange, error) {
	ex := &exchange{}
	ctx := colly.NewContext()
	ctx.Put(exchangeKey, ex)

	hdr := c.headers.Clone()
	if body != nil {
		hdr.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.Metrics.IncRequest(step)
	if err := c.collector.Request(method, c.cfg.BaseURL, body, ctx, hdr); err != nil {
		return nil, classifyError(step, err)
	}
	if !ex.received {
		return nil, ErrRequest{Step: step, Err: errors.New("no response received")}
	}
	return ex, nil
}

func (c *Client) configureHandlers() {
	c.handlersOnce.Do(func() {
		c.collector.OnRequest(func(r *colly.Request) {
			if ex, ok := r.Ctx.GetAny(exchangeKey).(*exchange); ok {
				ex.start = time.Now()
			}
			slog.Debug("upstream request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
			)
		})

		c.collector.OnResponse(func(r *colly.Response) {
			ex, ok := r.Ctx.GetAny(exchangeKey).(*exchange)
			if !ok {
				return
			}
			ex.status = r.StatusCode
			ex.body = r.Body
			ex.received = true
			step := StepData
			if r.Request.Method == http.MethodGet {
				step = StepPrime
			}
			c.Metrics.ObserveDuration(step, time.Since(ex.start))
			if r.StatusCode != http.StatusOK {
				slog.Warn("non-200 response",
					slog.String("step", step),
					slog.Int("status", r.StatusCode),
				)
			}
		})
	})
}

func classifyError(step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return ErrRequest{Step: step, Err: err}
}
