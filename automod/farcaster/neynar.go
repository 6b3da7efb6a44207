package farcaster

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/castmod/castmod/automod/engine"
)

const (
	DefaultNeynarHost = "https://api.neynar.com"
	DefaultPageSize   = 100
)

// NeynarClient reads channel feeds from the Neynar v2 API.
type NeynarClient struct {
	Client   *Client
	PageSize int
}

func NewNeynarClient(host, apiKey string, httpClient *http.Client) *NeynarClient {
	if host == "" {
		host = DefaultNeynarHost
	}
	return &NeynarClient{
		Client: &Client{
			Client:  httpClient,
			Host:    host,
			Headers: map[string]string{"api_key": apiKey},
		},
		PageSize: DefaultPageSize,
	}
}

type channelFeedParams struct {
	ChannelIDs  string `url:"channel_ids"`
	WithReplies bool   `url:"with_replies"`
	Limit       int    `url:"limit"`
	Cursor      string `url:"cursor,omitempty"`
}

type FeedPage struct {
	Casts []*engine.Cast `json:"casts"`
	Next  struct {
		Cursor *string `json:"cursor"`
	} `json:"next"`
}

// FetchChannelFeed fetches one page of a channel's feed. An empty cursor starts from the beginning.
func (nc *NeynarClient) FetchChannelFeed(ctx context.Context, channelID, cursor string) (*FeedPage, error) {
	limit := nc.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	var out FeedPage
	params := channelFeedParams{
		ChannelIDs:  channelID,
		WithReplies: true,
		Limit:       limit,
		Cursor:      cursor,
	}
	if err := nc.Client.Do(ctx, http.MethodGet, "/v2/farcaster/feed/channels", params, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching feed for channel %s: %w", channelID, err)
	}
	return &out, nil
}

// PageChannelCasts yields the channel's casts one page at a time until the feed runs out. A failed fetch is
// yielded once, and ends the sequence. The sequence can be restarted, but always from the first page.
func (nc *NeynarClient) PageChannelCasts(ctx context.Context, channelID string) iter.Seq2[[]*engine.Cast, error] {
	return func(yield func([]*engine.Cast, error) bool) {
		cursor := ""
		for {
			page, err := nc.FetchChannelFeed(ctx, channelID, cursor)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page.Casts) > 0 && !yield(page.Casts, nil) {
				return
			}
			if page.Next.Cursor == nil || *page.Next.Cursor == "" || len(page.Casts) == 0 {
				return
			}
			cursor = *page.Next.Cursor
		}
	}
}
