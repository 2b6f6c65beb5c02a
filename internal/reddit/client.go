// Package reddit reads the public listing endpoints of reddit.com.
// No OAuth: the .json listings only need a descriptive User-Agent.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches posts and comments from subreddit listings.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// listing is the envelope reddit wraps around every result set.
type listing struct {
	Data struct {
		Children []struct {
			Data Item `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Item is one post or comment out of a listing. Posts carry Title and
// SelfText, comments carry Body; the other fields are shared.
type Item struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"` // fullname, e.g. "t3_1abc2d"
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

// Text returns the searchable text of the item: title plus body for
// posts, the comment body otherwise.
func (it Item) Text() string {
	if it.Title != "" {
		if it.SelfText == "" {
			return it.Title
		}
		return it.Title + "\n" + it.SelfText
	}
	return it.Body
}

// CreatedAt converts reddit's float epoch seconds to a UTC time.
func (it Item) CreatedAt() time.Time {
	return time.Unix(int64(it.CreatedUTC), 0).UTC()
}

// URL returns the canonical reddit link for the item.
func (it Item) URL() string {
	if it.Permalink == "" {
		return ""
	}
	return "https://www.reddit.com" + it.Permalink
}

// NewClient creates a reddit listing client.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchNewPosts retrieves the newest posts of a subreddit.
func (c *Client) FetchNewPosts(ctx context.Context, subreddit string, limit int) ([]Item, error) {
	return c.fetchListing(ctx, fmt.Sprintf("%s/r/%s/new.json", c.baseURL, subreddit), limit)
}

// FetchNewComments retrieves the newest comments of a subreddit.
func (c *Client) FetchNewComments(ctx context.Context, subreddit string, limit int) ([]Item, error) {
	return c.fetchListing(ctx, fmt.Sprintf("%s/r/%s/comments.json", c.baseURL, subreddit), limit)
}

func (c *Client) fetchListing(ctx context.Context, urlStr string, limit int) ([]Item, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("raw_json", "1") // skip reddit's HTML entity escaping
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u.Path)
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	items := make([]Item, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		items = append(items, child.Data)
	}
	return items, nil
}

// doRequest performs a GET with retry on transport errors, rate limits,
// and server errors.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
