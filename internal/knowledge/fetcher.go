package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/lifeflow/guidance/internal/cache"
	"github.com/lifeflow/guidance/internal/worker"
)

const (
	maxRedirects = 3
	maxBodySize  = 10 * 1024 * 1024
)

// Fetcher downloads source documents politely: it honors robots.txt,
// rate-limits per host, and caches responses so re-ingestion does not
// hammer government portals.
type Fetcher struct {
	client    *http.Client
	userAgent string
	store     cache.Cache
	limiter   *worker.Limiter

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

// NewFetcher creates a fetcher. store may be nil to disable caching.
func NewFetcher(userAgent string, ratePerHost float64, store cache.Cache) *Fetcher {
	if userAgent == "" {
		userAgent = "LifeFlow/0.1 (+https://github.com/lifeflow/guidance)"
	}
	if ratePerHost <= 0 {
		ratePerHost = 2
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		store:     store,
		limiter:   worker.NewLimiter(ratePerHost, 1),
		robots:    make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch retrieves the raw body at rawURL, consulting the cache first.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	key := cache.Key("fetch", rawURL)
	if f.store != nil {
		if data, ok := f.store.Get(key); ok {
			return data, nil
		}
	}

	allowed, err := f.canFetch(ctx, u)
	if err != nil {
		// Unreachable robots.txt is treated as permissive, matching
		// crawler convention for 4xx responses.
		allowed = true
	}
	if !allowed {
		return nil, fmt.Errorf("robots.txt disallows %s", rawURL)
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if f.store != nil {
		_ = f.store.Set(key, data, 0)
	}
	return data, nil
}

func (f *Fetcher) canFetch(ctx context.Context, u *url.URL) (bool, error) {
	f.mu.Lock()
	data, ok := f.robots[u.Host]
	f.mu.Unlock()

	if !ok {
		robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return true, err
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		data, err = robotstxt.FromResponse(resp)
		if err != nil {
			return true, err
		}
		f.mu.Lock()
		f.robots[u.Host] = data
		f.mu.Unlock()
	}

	group := data.FindGroup(f.userAgent)
	if group == nil {
		return true, nil
	}
	return group.Test(u.Path), nil
}
