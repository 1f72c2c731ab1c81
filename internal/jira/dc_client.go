package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type dcClient struct {
	cfg        Config
	httpClient *http.Client

	throttleMutex sync.Mutex
	lastRequest   time.Time

	// Session Cache
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

func NewDataCenterClient(cfg Config) Client {
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = 250 * time.Millisecond
	}
	return &dcClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		cache: make(map[string]*cacheEntry),
	}
}

func (c *dcClient) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}

	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
	}

	return entry.Value, true
}

func (c *dcClient) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
}

// throttle spaces requests by RequestDelay. Concurrent callers queue on the
// mutex so the spacing holds across goroutines.
func (c *dcClient) throttle(ctx context.Context) error {
	c.throttleMutex.Lock()
	defer c.throttleMutex.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Trace().Dur("wait", wait).Msg("Throttling Jira request")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *dcClient) authenticateRequest(req *http.Request) {
	// 1. Prioritize Personal Access Token (PAT)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
		return
	}

	// 2. Basic auth
	if c.cfg.User != "" && c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
		return
	}

	// 3. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
		{"GCILB", c.cfg.GCILB},
		{"GCLB", c.cfg.GCLB},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built by hand: net/http's RFC 6265 validation drops GCLB
			// cookies containing double quotes.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
	}
}

// getJSON performs an authenticated, throttled GET and decodes the body into out.
func (c *dcClient) getJSON(ctx context.Context, path string, params url.Values, what string, out any) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("Jira base URL is not configured (set JIRA_URL)")
	}
	if err := c.throttle(ctx); err != nil {
		return err
	}

	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	log.Debug().Str("url", reqURL).Msg("Jira request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Jira request for %s failed: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s not found", what)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("Jira authentication failed (401/403). Please check your token or session cookies.")
		case http.StatusTooManyRequests:
			retryAfter := resp.Header.Get("Retry-After")
			if retryAfter != "" {
				return fmt.Errorf("Jira rate limit exceeded (429). Retry after %s seconds.", retryAfter)
			}
			return fmt.Errorf("Jira rate limit exceeded (429).")
		default:
			return fmt.Errorf("Jira API returned status %d for %s", resp.StatusCode, what)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}

func (c *dcClient) SearchIssues(ctx context.Context, jql string, fields []string, startAt int, maxResults int) (*SearchResponse, error) {
	fieldList := strings.Join(fields, ",")
	cacheKey := fmt.Sprintf("search:%s:%s:%d:%d", jql, fieldList, startAt, maxResults)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*SearchResponse), nil
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	if fieldList != "" {
		params.Set("fields", fieldList)
	}

	log.Debug().Str("jql", jql).Int("startAt", startAt).Msg("Requesting issues from Jira")
	var result SearchResponse
	if err := c.getJSON(ctx, "/rest/api/2/search", params, "issue search", &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &result, 10*time.Minute)
	return &result, nil
}

func (c *dcClient) GetIssueWorklogs(ctx context.Context, issueKey string, startAt int, maxResults int) (*WorklogPageDTO, error) {
	cacheKey := fmt.Sprintf("worklogs:%s:%d:%d", issueKey, startAt, maxResults)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*WorklogPageDTO), nil
	}

	params := url.Values{}
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))

	var page WorklogPageDTO
	path := "/rest/api/2/issue/" + url.PathEscape(issueKey) + "/worklog"
	if err := c.getJSON(ctx, path, params, "worklogs of "+issueKey, &page); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &page, 5*time.Minute)
	return &page, nil
}

// GetIssueChangelog uses expand=changelog, which Data Center supports; the
// dedicated /changelog endpoint is Cloud-only.
func (c *dcClient) GetIssueChangelog(ctx context.Context, issueKey string) (*IssueDTO, error) {
	cacheKey := "changelog:" + issueKey
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*IssueDTO), nil
	}

	params := url.Values{}
	params.Set("fields", "summary")
	params.Set("expand", "changelog")

	var issue IssueDTO
	path := "/rest/api/2/issue/" + url.PathEscape(issueKey)
	if err := c.getJSON(ctx, path, params, "issue "+issueKey, &issue); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &issue, 5*time.Minute)
	return &issue, nil
}
