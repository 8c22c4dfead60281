package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Client talks to the balendip HTTP API.
type Client struct {
	base   string
	token  string
	client *http.Client
}

func newClient(base, token string, timeout time.Duration) *Client {
	return &Client{base: base, token: token, client: &http.Client{Timeout: timeout}}
}

// do sends body as JSON and decodes a 2xx response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// seedSpheres makes sure the user has spheres and returns them.
func (c *Client) seedSpheres(ctx context.Context) ([]model.LifeSphere, error) {
	var resp struct {
		Spheres []model.LifeSphere `json:"spheres"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/spheres/seed", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Spheres, nil
}

func (c *Client) createEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	var e model.Event
	err := c.do(ctx, http.MethodPost, "/api/v1/events", in, &e)
	return e, err
}

type listPage struct {
	Events        []model.Event `json:"events"`
	NextPageToken *string       `json:"next_page_token"`
}

func (c *Client) listEvents(ctx context.Context, from, to, token string, size int) (listPage, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("page_size", strconv.Itoa(size))
	if token != "" {
		q.Set("page_token", token)
	}
	var page listPage
	err := c.do(ctx, http.MethodGet, "/api/v1/events?"+q.Encode(), nil, &page)
	return page, err
}

// remoteAnalytics is the subset of the analytics response the tool checks.
type remoteAnalytics struct {
	Statistics struct {
		TotalEvents   int            `json:"total_events"`
		EmotionCounts map[string]int `json:"emotion_counts"`
		SphereCounts  map[string]int `json:"sphere_counts"`
		MoodScore     int            `json:"mood_score"`
	} `json:"statistics"`
	Truncated bool `json:"truncated"`
}

func (c *Client) analytics(ctx context.Context, from, to string) (remoteAnalytics, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	var a remoteAnalytics
	err := c.do(ctx, http.MethodGet, "/api/v1/analytics?"+q.Encode(), nil, &a)
	return a, err
}

// submitEvents creates inputs concurrently and returns the events the
// server accepted, in no particular order.
func submitEvents(ctx context.Context, cfg *Config, c *Client, inputs []model.EventInput, stats *Stats) []model.Event {
	log := logger.Get()
	log.Info(ctx, "submitting events", logger.Int("events", len(inputs)), logger.Int("workers", cfg.Workers))

	var (
		submitted, failed int64
		mu                sync.Mutex
		created           = make([]model.Event, 0, len(inputs))
		wg                sync.WaitGroup
	)

	work := make(chan model.EventInput, cfg.Workers*2)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range work {
				e, err := c.createEvent(ctx, in)
				n := atomic.AddInt64(&submitted, 1)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "event rejected", logger.String("title", in.Title), logger.Error(err))
					}
					continue
				}
				mu.Lock()
				created = append(created, e)
				mu.Unlock()
				if cfg.Verbose && n%100 == 0 {
					log.Debug(ctx, "progress", logger.Int64("submitted", n), logger.Int("total", len(inputs)))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, in := range inputs {
			select {
			case <-ctx.Done():
				return
			case work <- in:
			}
		}
	}()
	wg.Wait()

	stats.EventsSubmitted = int(submitted)
	stats.EventsFailed = int(failed)
	stats.EventsSuccessful = len(created)
	log.Info(ctx, "event submission completed",
		logger.Int("successful", stats.EventsSuccessful),
		logger.Int("failed", stats.EventsFailed))
	return created
}
