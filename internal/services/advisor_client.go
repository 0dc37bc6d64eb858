package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"data-alchemist/backend/pkg/models"
)

// HTTPAdvisorConfig configures an HTTPAdvisor.
type HTTPAdvisorConfig struct {
	URL           string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    uint64
}

// HTTPAdvisor is an HTTP implementation of the Advisor interface. Each
// non-empty collection is reviewed by its own request; requests share one
// rate limiter and are retried with exponential backoff.
type HTTPAdvisor struct {
	url        string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
}

// NewHTTPAdvisor creates a new HTTPAdvisor.
func NewHTTPAdvisor(cfg HTTPAdvisorConfig) *HTTPAdvisor {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAdvisor{
		url:        cfg.URL,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: cfg.MaxRetries,
	}
}

type reviewRequest struct {
	Entity  models.EntityKind `json:"entity"`
	Records any               `json:"records"`
	Defects []models.Defect   `json:"defects"`
}

type reviewResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Review asks the advisor about clients, workers and tasks concurrently.
// Suggestions come back grouped in that order.
func (c *HTTPAdvisor) Review(ctx context.Context, records models.Records, defects []models.Defect) ([]Suggestion, error) {
	batches := []reviewRequest{
		{Entity: models.EntityClients, Records: records.Clients},
		{Entity: models.EntityWorkers, Records: records.Workers},
		{Entity: models.EntityTasks, Records: records.Tasks},
	}
	counts := []int{len(records.Clients), len(records.Workers), len(records.Tasks)}

	results := make([][]Suggestion, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i := range batches {
		if counts[i] == 0 {
			continue
		}
		batch := batches[i]
		batch.Defects = defectsFor(defects, batch.Entity)
		g.Go(func() error {
			got, err := c.review(gctx, batch)
			if err != nil {
				return fmt.Errorf("failed to review %s: %w", batch.Entity, err)
			}
			results[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Suggestion
	for i, batch := range batches {
		for _, s := range results[i] {
			s.Entity = batch.Entity
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *HTTPAdvisor) review(ctx context.Context, batch reviewRequest) ([]Suggestion, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var suggestions []Suggestion
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/review", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("advisor unavailable: status code %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			_, _ = io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("advisor rejected request: status code %d", resp.StatusCode))
		}

		var decoded reviewResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response body: %w", err))
		}
		suggestions = decoded.Suggestions
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return suggestions, nil
}

func defectsFor(defects []models.Defect, entity models.EntityKind) []models.Defect {
	out := make([]models.Defect, 0)
	for _, d := range defects {
		if d.Entity == entity {
			out = append(out, d)
		}
	}
	return out
}
