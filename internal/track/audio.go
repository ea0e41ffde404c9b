// Package track holds the playback core: the Audio entity and the
// AudioQueue state machine that all queue navigation funnels through.
package track

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// TrackInfo is what a resolver returns for a webpage URL: a fresh stream
// URL plus display metadata.
type TrackInfo struct {
	StreamURL  string
	WebpageURL string
	Title      string
	Duration   time.Duration
	Thumbnail  string
}

// Resolver turns a canonical webpage URL into a playable stream. Repeated
// calls must be safe; failure is an error return, never a panic.
type Resolver interface {
	Resolve(webpageURL string) (*TrackInfo, error)
}

// Prober performs a lightweight reachability check against a stream URL.
// A nil return means the URL looks playable.
type Prober interface {
	Probe(streamURL string) error
}

// Audio is one playable entry. It lives in exactly one place at a time:
// the forward queue, the history, or the queue's current slot.
type Audio struct {
	ID             uuid.UUID
	RequesterID    string
	RequesterName  string
	VoiceChannelID string
	TextChannelID  string

	StreamURL  string
	WebpageURL string
	Title      string
	Duration   time.Duration
	Thumbnail  string

	// EndTime stays zero until SetEndTime is called when the track becomes
	// current. It is never recomputed implicitly.
	EndTime time.Time
}

// NewAudio builds an Audio from resolved track info.
func NewAudio(requesterID, requesterName, voiceChannelID, textChannelID string, info *TrackInfo) *Audio {
	return &Audio{
		ID:             uuid.New(),
		RequesterID:    requesterID,
		RequesterName:  requesterName,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
		StreamURL:      info.StreamURL,
		WebpageURL:     info.WebpageURL,
		Title:          info.Title,
		Duration:       info.Duration,
		Thumbnail:      info.Thumbnail,
	}
}

func (a *Audio) String() string {
	if a.Title != "" {
		return a.Title
	}
	return a.WebpageURL
}

// IsStale reports whether the stream URL is no longer reachable. Probe
// failures of any kind (timeout, DNS, refused connection) count as stale;
// nothing propagates to the caller.
func (a *Audio) IsStale(prober Prober) bool {
	if err := prober.Probe(a.StreamURL); err != nil {
		log.Printf("[Audio] Unable to reach %s: %v", a.StreamURL, err)
		return true
	}
	return false
}

// Refresh re-resolves the webpage URL and replaces the stream URL and
// metadata in place. On failure the fields are left untouched.
func (a *Audio) Refresh(resolver Resolver) bool {
	info, err := resolver.Resolve(a.WebpageURL)
	if err != nil || info == nil {
		log.Printf("[ERR] [Audio] Unable to refresh audio %q: %v", a.Title, err)
		return false
	}

	a.StreamURL = info.StreamURL
	a.WebpageURL = info.WebpageURL
	a.Title = info.Title
	a.Duration = info.Duration
	a.Thumbnail = info.Thumbnail
	log.Printf("[Audio] Refreshed audio: %s", a.Title)
	return true
}

// SetEndTime computes the absolute timestamp at which playback will finish.
// The offset is the elapsed position into the track, so a seek can restate
// the end time without a live position counter.
func (a *Audio) SetEndTime(offset time.Duration) {
	a.EndTime = time.Now().Add(a.Duration - offset)
}
