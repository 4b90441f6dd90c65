package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Requests are refused pre-flight once the remaining budget drops to
// this floor, leaving headroom for other consumers of the same token.
const rateLimitFloor = 10

// rateLimitHeaders names the budget headers a platform sends.
type rateLimitHeaders struct {
	remaining string
	reset     string
	limit     string
}

// client is the shared rate-limit-aware HTTP layer under every
// platform adapter. It consults the persisted budget before each
// request and refreshes it from every response.
type client struct {
	platform      models.Platform
	http          *resty.Client
	store         storage.Store
	headers       rateLimitHeaders
	defaultBudget int
	now           func() time.Time

	mu    sync.Mutex
	state models.RateLimitState
}

func newClient(platform models.Platform, baseURL string, store storage.Store, headers rateLimitHeaders, defaultBudget int) *client {
	c := &client{
		platform:      platform,
		http:          resty.New().SetBaseURL(baseURL).SetTimeout(30*time.Second).SetHeader("User-Agent", "gitpulse/1.0"),
		store:         store,
		headers:       headers,
		defaultBudget: defaultBudget,
		now:           time.Now,
		state:         models.RateLimitState{Remaining: defaultBudget, Limit: defaultBudget},
	}
	c.loadState()
	return c
}

func (c *client) rateLimitKey() string {
	return fmt.Sprintf("ratelimit:%s", c.platform)
}

func (c *client) loadState() {
	data, err := c.store.Get(c.rateLimitKey())
	if err != nil {
		if err != storage.ErrNotFound {
			logrus.Errorf("Failed to load %s rate-limit state: %v", c.platform, err)
		}
		return
	}
	var state models.RateLimitState
	if err := json.Unmarshal(data, &state); err != nil {
		logrus.Errorf("Failed to decode %s rate-limit state: %v", c.platform, err)
		return
	}
	c.state = state
}

// get issues a GET request against path, enforcing the budget first.
func (c *client) get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	if err := c.checkBudget(); err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%s request %s: %w", c.platform, path, err)
	}

	c.updateFromResponse(resp)
	return resp, nil
}

// checkBudget fails fast when the remaining budget is at the floor and
// the reset time has not passed. No network call is made.
func (c *client) checkBudget() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().Unix()
	if c.state.Remaining <= rateLimitFloor && now < c.state.ResetEpoch {
		retry := int((c.state.ResetEpoch-now)/60) + 1
		return &RateLimitedError{Platform: c.platform, RetryAfterMinutes: retry}
	}
	return nil
}

// updateFromResponse refreshes the budget from response headers and
// persists the telemetry regardless of the business outcome. A header
// the platform did not send leaves the stored value untouched.
func (c *client) updateFromResponse(resp *resty.Response) {
	c.mu.Lock()
	if v, ok := headerInt(resp, c.headers.remaining); ok {
		c.state.Remaining = v
	}
	if v, ok := headerInt(resp, c.headers.reset); ok {
		c.state.ResetEpoch = int64(v)
	}
	if v, ok := headerInt(resp, c.headers.limit); ok {
		c.state.Limit = v
	}
	state := c.state
	c.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := c.store.Set(c.rateLimitKey(), data); err != nil {
		logrus.Errorf("Failed to persist %s rate-limit state: %v", c.platform, err)
	}
}

func (c *client) rateLimit() models.RateLimitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func headerInt(resp *resty.Response, name string) (int, bool) {
	raw := resp.Header().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
