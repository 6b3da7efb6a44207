package farcaster

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/castmod/castmod/automod/engine"
)

const DefaultWarpcastHost = "https://api.warpcast.com"

// WarpcastClient carries out channel moderation through the Warpcast API, signed as a channel moderator. It
// implements engine.Platform and engine.CohostLookup.
type WarpcastClient struct {
	Client *Client
	Clock  func() time.Time
}

var (
	_ engine.Platform     = (*WarpcastClient)(nil)
	_ engine.CohostLookup = (*WarpcastClient)(nil)
)

func NewWarpcastClient(host, apiKey string, httpClient *http.Client) *WarpcastClient {
	if host == "" {
		host = DefaultWarpcastHost
	}
	return &WarpcastClient{
		Client: &Client{
			Client:  httpClient,
			Host:    host,
			Headers: map[string]string{"Authorization": "Bearer " + apiKey},
		},
		Clock: time.Now,
	}
}

type moderateCastBody struct {
	CastHash string `json:"castHash"`
	Action   string `json:"action"`
}

type restrictionBody struct {
	ChannelKey    string `json:"channelKey"`
	RestrictedFID int64  `json:"restrictedFid"`
	// unix millis; zero is indefinite
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

type banBody struct {
	ChannelKey string `json:"channelKey"`
	BanFID     int64  `json:"banFid"`
}

type directCastBody struct {
	RecipientFID   int64  `json:"recipientFid"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type channelHostsResp struct {
	Result struct {
		Hosts []struct {
			FID      int64  `json:"fid"`
			Username string `json:"username"`
		} `json:"hosts"`
	} `json:"result"`
}

func (wc *WarpcastClient) HideQuietly(ctx context.Context, channelID string, cast *engine.Cast) error {
	if err := wc.Client.Do(ctx, http.MethodPost, "/fc/moderate-cast", nil, moderateCastBody{CastHash: cast.Hash, Action: "hide"}, nil); err != nil {
		return fmt.Errorf("hiding cast %s in %s: %w", cast.Hash, channelID, err)
	}
	return nil
}

// WarnAndHide hides the cast, then lets the author know by direct cast.
func (wc *WarpcastClient) WarnAndHide(ctx context.Context, channelID string, cast *engine.Cast) error {
	if err := wc.HideQuietly(ctx, channelID, cast); err != nil {
		return err
	}
	body := directCastBody{
		RecipientFID:   cast.Author.FID,
		Message:        fmt.Sprintf("Your cast in /%s was hidden by the channel moderators.", channelID),
		IdempotencyKey: "warn-" + cast.Hash,
	}
	if err := wc.Client.Do(ctx, http.MethodPut, "/v2/ext-send-direct-cast", nil, body, nil); err != nil {
		return fmt.Errorf("warning fid %d: %w", cast.Author.FID, err)
	}
	return nil
}

func (wc *WarpcastClient) Mute(ctx context.Context, channelID string, cast *engine.Cast) error {
	body := restrictionBody{ChannelKey: channelID, RestrictedFID: cast.Author.FID}
	if err := wc.Client.Do(ctx, http.MethodPost, "/fc/channel-restrictions", nil, body, nil); err != nil {
		return fmt.Errorf("muting fid %d in %s: %w", cast.Author.FID, channelID, err)
	}
	return nil
}

func (wc *WarpcastClient) Cooldown(ctx context.Context, channelID string, cast *engine.Cast, duration time.Duration) error {
	body := restrictionBody{
		ChannelKey:    channelID,
		RestrictedFID: cast.Author.FID,
		ExpiresAt:     wc.Clock().Add(duration).UnixMilli(),
	}
	if err := wc.Client.Do(ctx, http.MethodPost, "/fc/channel-restrictions", nil, body, nil); err != nil {
		return fmt.Errorf("cooling down fid %d in %s: %w", cast.Author.FID, channelID, err)
	}
	return nil
}

func (wc *WarpcastClient) Ban(ctx context.Context, channelID string, cast *engine.Cast) error {
	body := banBody{ChannelKey: channelID, BanFID: cast.Author.FID}
	if err := wc.Client.Do(ctx, http.MethodPost, "/fc/channel-bans", nil, body, nil); err != nil {
		return fmt.Errorf("banning fid %d from %s: %w", cast.Author.FID, channelID, err)
	}
	return nil
}

type channelParams struct {
	ChannelKey string `url:"channelKey"`
}

// ChannelHosts lists the FIDs of the channel's hosts.
func (wc *WarpcastClient) ChannelHosts(ctx context.Context, channelID string) ([]int64, error) {
	var out channelHostsResp
	if err := wc.Client.Do(ctx, http.MethodGet, "/fc/channel-hosts", channelParams{ChannelKey: channelID}, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching hosts of %s: %w", channelID, err)
	}
	fids := make([]int64, 0, len(out.Result.Hosts))
	for _, h := range out.Result.Hosts {
		fids = append(fids, h.FID)
	}
	return fids, nil
}

func (wc *WarpcastClient) IsCohost(ctx context.Context, fid int64, channelID string) (bool, error) {
	hosts, err := wc.ChannelHosts(ctx, channelID)
	if err != nil {
		return false, err
	}
	return slices.Contains(hosts, fid), nil
}
