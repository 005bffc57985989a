// Package feeds provides the outbound HTTP clients for external content
// sources: RSS feeds and Wikipedia summaries.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	// maxFeedBytes caps how much of a feed body is read.
	maxFeedBytes = 1 << 20

	// maxRedirects is the number of redirect hops followed per fetch.
	maxRedirects = 1
)

// RSSItem is one entry of a fetched feed.
type RSSItem struct {
	Title       string
	Link        string
	Description string
	Published   time.Time
	Source      string
}

// RSSFeed is a fetched feed.
type RSSFeed struct {
	Title string
	Items []RSSItem
}

// RSSClient fetches RSS feeds over HTTP. Every fetch enforces SSRF guards:
// only http/https URLs, no private or loopback destinations, and at most one
// redirect hop which is re-checked against the same rules.
type RSSClient struct {
	httpClient *http.Client
}

// RSSOption configures the RSSClient.
type RSSOption func(*RSSClient)

// WithRSSTimeout bounds each feed fetch.
func WithRSSTimeout(timeout time.Duration) RSSOption {
	return func(c *RSSClient) {
		c.httpClient.Timeout = timeout
	}
}

// NewRSSClient creates an RSS client with SSRF guards installed.
func NewRSSClient(opts ...RSSOption) *RSSClient {
	c := &RSSClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	c.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		return checkFeedURL(req.URL)
	}
	c.httpClient.Transport = &http.Transport{
		DialContext: guardedDialContext,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFeed fetches and parses one feed.
func (c *RSSClient) FetchFeed(ctx context.Context, rawURL string) (*RSSFeed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url %q; %w", rawURL, err)
	}
	if err := checkFeedURL(u); err != nil {
		return nil, fmt.Errorf("feed url %q rejected; %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request; %w", err)
	}
	req.Header.Set("User-Agent", "flapboard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed fetch failed; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed fetch returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body; %w", err)
	}

	feed, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %q; %w", rawURL, err)
	}
	return feed, nil
}

// GetLatestItems fetches all feeds and returns up to limit items, newest
// first. Individual feed failures are skipped; an error is returned only
// when every feed fails.
func (c *RSSClient) GetLatestItems(ctx context.Context, urls []string, limit int) ([]RSSItem, error) {
	if limit <= 0 {
		limit = 10
	}

	var items []RSSItem
	var lastErr error
	for _, u := range urls {
		feed, err := c.FetchFeed(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		for _, item := range feed.Items {
			item.Source = feed.Title
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("all feeds failed; %w", lastErr)
		}
		return nil, fmt.Errorf("no feed items available")
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// checkFeedURL enforces the protocol whitelist and, for literal IP hosts,
// the address blocklist. Hostname destinations are checked again at dial
// time so DNS answers cannot bypass the guard.
func checkFeedURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil {
		return checkIP(ip)
	}
	return nil
}

// guardedDialContext resolves the host and rejects private, loopback, and
// link-local destinations, including IPv4-mapped IPv6 forms.
func guardedDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	for _, ip := range ips {
		if checkIP(ip) != nil {
			continue
		}
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("no permitted address for host %q", host)
}

// checkIP rejects addresses that must never be fetched. Unmap catches
// IPv4-mapped IPv6 addresses like ::ffff:10.0.0.1.
func checkIP(ip net.IP) error {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback address %s not allowed", ip)
	case ip.IsPrivate():
		return fmt.Errorf("private address %s not allowed", ip)
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local address %s not allowed", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified address %s not allowed", ip)
	}
	return nil
}

// rssDocument covers both RSS 2.0 and Atom shapes well enough for headline
// extraction.
type rssDocument struct {
	XMLName xml.Name
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Link  struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Summary string `xml:"summary"`
	Updated string `xml:"updated"`
}

func parseFeed(body []byte) (*RSSFeed, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	if doc.XMLName.Local == "feed" {
		feed := &RSSFeed{Title: doc.Title}
		for _, e := range doc.Entries {
			feed.Items = append(feed.Items, RSSItem{
				Title:       e.Title,
				Link:        e.Link.Href,
				Description: e.Summary,
				Published:   parseFeedTime(e.Updated),
			})
		}
		return feed, nil
	}

	feed := &RSSFeed{Title: doc.Channel.Title}
	for _, item := range doc.Channel.Items {
		feed.Items = append(feed.Items, RSSItem{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Published:   parseFeedTime(item.PubDate),
		})
	}
	if len(feed.Items) == 0 && feed.Title == "" {
		return nil, fmt.Errorf("document is not a recognized feed")
	}
	return feed, nil
}

func parseFeedTime(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
