// Package resolver implements the track resolver contract: a canonical
// webpage URL goes in, a fresh stream URL plus display metadata comes out.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	youtube "github.com/kkdai/youtube/v2"

	"wavepilot/internal/track"
	"wavepilot/pkg/retrylimit"
)

const (
	resolveTimeout     = 30 * time.Second
	resolveMaxAttempts = 3
)

var ErrNoAudioFormats = errors.New("no audio formats found for video")

// YouTube resolves YouTube watch URLs through the innertube client. Stream
// URLs it hands out expire after a few hours, which is exactly why the
// queue re-resolves tracks that have gone stale.
type YouTube struct {
	client *youtube.Client
	lim    *retrylimit.AdaptiveLimiter
	search *searcher
}

// NewYouTube creates a resolver. proxyURL may be empty for a direct
// connection.
func NewYouTube(proxyURL string) *YouTube {
	httpClient := newHTTPClient(proxyURL)
	return &YouTube{
		client: &youtube.Client{HTTPClient: httpClient},
		lim:    retrylimit.NewAdaptiveLimiter(2, 1, 10, 1, 0.5),
		search: newSearcher(httpClient),
	}
}

// Resolve implements track.Resolver.
func (y *YouTube) Resolve(webpageURL string) (*track.TrackInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	var info *track.TrackInfo
	err := retrylimit.WithRetryMax(ctx, func() error {
		var rErr error
		info, rErr = y.resolveOnce(ctx, webpageURL)
		return rErr
	}, y.lim, resolveMaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", webpageURL, err)
	}
	return info, nil
}

func (y *YouTube) resolveOnce(ctx context.Context, webpageURL string) (*track.TrackInfo, error) {
	video, err := y.client.GetVideoContext(ctx, webpageURL)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, &retrylimit.FatalError{Err: ErrNoAudioFormats}
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return nil, fmt.Errorf("get stream URL: %w", err)
	}

	return &track.TrackInfo{
		StreamURL:  streamURL,
		WebpageURL: "https://www.youtube.com/watch?v=" + video.ID,
		Title:      video.Title,
		Duration:   video.Duration,
		Thumbnail:  bestThumbnail(video.Thumbnails),
	}, nil
}

// Search finds the watch URL for the first video matching the query.
func (y *YouTube) Search(query string) (string, error) {
	return y.search.FirstVideoURL(query)
}

func bestThumbnail(thumbs youtube.Thumbnails) string {
	best := ""
	var bestWidth uint
	for _, t := range thumbs {
		if t.URL != "" && t.Width >= bestWidth {
			best = t.URL
			bestWidth = t.Width
		}
	}
	return best
}
