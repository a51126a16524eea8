package news

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// FeedClientOptions parameterise the RSS/Atom client.
type FeedClientOptions struct {
	Timeout   time.Duration
	UserAgent string
}

// FeedClient fetches and parses syndication feeds via gofeed.
type FeedClient struct {
	parser *gofeed.Parser
	logger zerolog.Logger
}

// NewFeedClient constructs a feed client.
func NewFeedClient(opts FeedClientOptions, logger zerolog.Logger) *FeedClient {
	parser := gofeed.NewParser()
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		parser.UserAgent = ua
	} else {
		parser.UserAgent = "moverwatch/1.0"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	parser.Client = &http.Client{Timeout: timeout}
	return &FeedClient{
		parser: parser,
		logger: logger.With().Str("component", "feed_client").Logger(),
	}
}

// Entries fetches the feed and maps entries onto Items. Entries without a
// usable publish instant are dropped; a malformed feed yields nil, nil.
func (c *FeedClient) Entries(ctx context.Context, feedURL string) ([]Item, error) {
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		// Context errors propagate so the caller can stop; parse garbage is
		// just an empty contribution.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().Err(err).Str("feed", feedURL).Msg("feed parse failed")
		return nil, nil
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		pub := publishInstant(entry)
		if pub == nil {
			continue
		}
		items = append(items, Item{
			Title:       strings.TrimSpace(entry.Title),
			Summary:     strings.TrimSpace(entry.Description),
			Link:        strings.TrimSpace(entry.Link),
			Source:      sourceName(feed, entry),
			PublishedAt: pub.UTC(),
		})
	}
	return items, nil
}

func publishInstant(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	return entry.UpdatedParsed
}

func sourceName(feed *gofeed.Feed, entry *gofeed.Item) string {
	if title := strings.TrimSpace(feed.Title); title != "" {
		return title
	}
	if u, err := url.Parse(entry.Link); err == nil && u.Host != "" {
		return u.Host
	}
	return ""
}

var _ FeedProvider = (*FeedClient)(nil)
