package feeds

import (
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFeedURL_SchemeWhitelist(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"https://example.com/feed.xml", true},
		{"http://example.com/feed.xml", true},
		{"ftp://example.com/feed.xml", false},
		{"file:///etc/passwd", false},
		{"gopher://example.com", false},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)
		err = checkFeedURL(u)
		if tt.ok {
			assert.NoError(t, err, tt.raw)
		} else {
			assert.Error(t, err, tt.raw)
		}
	}
}

func TestCheckFeedURL_LiteralIPBlocklist(t *testing.T) {
	blocked := []string{
		"http://127.0.0.1/feed",
		"http://10.0.0.5/feed",
		"http://192.168.1.1/feed",
		"http://172.16.0.1/feed",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/feed",
		"http://[::ffff:10.0.0.1]/feed",
		"http://0.0.0.0/feed",
	}

	for _, raw := range blocked {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Error(t, checkFeedURL(u), raw)
	}

	u, err := url.Parse("http://93.184.216.34/feed")
	require.NoError(t, err)
	assert.NoError(t, checkFeedURL(u))
}

func TestCheckIP_MappedIPv6(t *testing.T) {
	assert.Error(t, checkIP(net.ParseIP("::ffff:192.168.0.1")))
	assert.Error(t, checkIP(net.ParseIP("fe80::1")))
	assert.NoError(t, checkIP(net.ParseIP("2606:4700::1111")))
}

func TestParseFeed_RSS2(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example News</title>
    <item>
      <title>First headline</title>
      <link>https://example.com/1</link>
      <description>Something happened.</description>
      <pubDate>Mon, 24 Aug 2026 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second headline</title>
      <link>https://example.com/2</link>
      <pubDate>Mon, 24 Aug 2026 09:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`)

	feed, err := parseFeed(body)
	require.NoError(t, err)

	assert.Equal(t, "Example News", feed.Title)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "First headline", feed.Items[0].Title)
	assert.Equal(t, "https://example.com/1", feed.Items[0].Link)
	assert.Equal(t, time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC), feed.Items[0].Published.UTC())
}

func TestParseFeed_Atom(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Source</title>
  <entry>
    <title>Atom entry</title>
    <link href="https://example.com/a"/>
    <summary>Summary text</summary>
    <updated>2026-08-24T10:00:00Z</updated>
  </entry>
</feed>`)

	feed, err := parseFeed(body)
	require.NoError(t, err)

	assert.Equal(t, "Atom Source", feed.Title)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Atom entry", feed.Items[0].Title)
	assert.Equal(t, "https://example.com/a", feed.Items[0].Link)
}

func TestParseFeed_RejectsNonFeed(t *testing.T) {
	_, err := parseFeed([]byte(`<html><body>not a feed</body></html>`))
	assert.Error(t, err)
}

func TestTruncateAtWord(t *testing.T) {
	assert.Equal(t, "short", truncateAtWord("short", 100))
	assert.Equal(t, "one two", truncateAtWord("one two three four", 10))
	assert.Equal(t, "abcde", truncateAtWord("abcdefghij", 5))
}
