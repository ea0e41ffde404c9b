// Package voice is the playback driver: it reacts to queue events by
// starting, swapping, or stopping the audio stream on the one live voice
// connection a session owns.
package voice

import (
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"wavepilot/internal/events"
	"wavepilot/internal/track"
)

// Bus is the slice of the event bus the driver needs.
type Bus interface {
	Subscribe(events.Topic, events.Handler)
	Publish(events.Event)
}

// Driver owns at most one live voice connection and one playback loop.
// Queue state is never touched from here: playback outcomes go out as
// playback_ended events and the session decides what comes next.
type Driver struct {
	mu        sync.Mutex
	bus       Bus
	connector Connector
	newSource SourceFactory
	opts      Options
	stream    streamFunc

	conn    Connection
	cur     *track.Audio
	playing bool
	stop    chan struct{}
	swap    chan io.ReadCloser
}

// New creates a Driver and subscribes it to new-audio and no-audio events.
func New(bus Bus, connector Connector, newSource SourceFactory, opts Options) *Driver {
	d := &Driver{
		bus:       bus,
		connector: connector,
		newSource: newSource,
		opts:      opts,
		stream:    encodeStream,
	}
	bus.Subscribe(events.TopicNewAudio, d.onNewAudio)
	bus.Subscribe(events.TopicNoAudio, d.onNoAudio)
	return d
}

func (d *Driver) onNewAudio(evt events.Event) {
	audio, ok := evt.Data.(*track.Audio)
	if !ok || audio == nil {
		log.Printf("[ERR] [Voice] new_audio event without audio payload")
		return
	}
	d.Play(audio)
}

func (d *Driver) onNoAudio(events.Event) {
	d.Disconnect()
}

// Play streams audio to its voice channel. If a stream is already running
// the source is swapped in place; otherwise a playback loop starts. Setup
// failures are reported as a finished playback so the session advances
// past the broken track instead of stalling.
func (d *Driver) Play(audio *track.Audio) {
	d.mu.Lock()

	prev := d.conn
	conn, err := d.ensureVoiceLocked(audio.VoiceChannelID)
	if err != nil {
		d.mu.Unlock()
		log.Printf("[ERR] [Voice] Unable to reach voice channel %s: %v", audio.VoiceChannelID, err)
		d.bus.Publish(events.Event{Topic: events.TopicPlaybackEnded, Data: audio, Err: err})
		return
	}

	src, err := d.newSource(audio.StreamURL, d.opts)
	if err != nil {
		d.mu.Unlock()
		log.Printf("[ERR] [Voice] Unable to open source for %q: %v", audio, err)
		d.bus.Publish(events.Event{Topic: events.TopicPlaybackEnded, Data: audio, Err: err})
		return
	}

	d.cur = audio

	// A nil swap channel means the loop is already winding down after a
	// stop; it cannot take the source, so start a fresh loop instead.
	if d.playing && conn == prev && d.swap != nil {
		swap := d.swap
		d.mu.Unlock()
		swap <- src
		log.Printf("[Voice] Swapped stream to %q", audio)
		return
	}
	if d.playing {
		// The connection was rebuilt, so the running loop is streaming to a
		// dead connection. Retire it instead of swapping.
		d.stopLocked()
	}

	d.playing = true
	stop := make(chan struct{})
	swap := make(chan io.ReadCloser, 1)
	d.stop = stop
	d.swap = swap
	d.mu.Unlock()

	log.Printf("[Voice] Starting stream for %q (id=%s)", audio, audio.ID)
	go d.run(conn, src, stop, swap)
}

// run hosts the blocking playback loop on its own goroutine. Only the
// completion path below mutates driver state; the loop itself never does.
func (d *Driver) run(conn Connection, src io.ReadCloser, stop chan struct{}, swap chan io.ReadCloser) {
	err := d.stream(conn, src, stop, swap)

	// A swap that raced the end of the loop still owns a source.
	select {
	case late := <-swap:
		late.Close()
	default:
	}

	d.mu.Lock()
	if d.stop != nil && d.stop != stop {
		// A newer loop took over before this one wound down; its state is
		// not ours to touch.
		d.mu.Unlock()
		return
	}
	ended := d.cur
	d.cur = nil
	d.playing = false
	if d.stop == stop {
		d.stop = nil
		d.swap = nil
	}
	d.mu.Unlock()

	if err != nil {
		log.Printf("[ERR] [Voice] Play error: %v", err)
	}
	d.bus.Publish(events.Event{Topic: events.TopicPlaybackEnded, Data: ended, Err: err})
}

// ensureVoiceLocked joins the target channel, moving the existing
// connection when possible and rejoining from scratch when not.
func (d *Driver) ensureVoiceLocked(channelID string) (Connection, error) {
	if d.conn != nil {
		if d.conn.ChannelID() == channelID {
			return d.conn, nil
		}
		err := d.conn.Move(channelID)
		if err == nil {
			log.Printf("[Voice] Moved to voice channel %s", channelID)
			return d.conn, nil
		}
		log.Printf("[Voice] Move to %s failed, rejoining: %v", channelID, err)
		if err := d.conn.Disconnect(); err != nil {
			log.Printf("[ERR] [Voice] Disconnect before rejoin failed: %v", err)
		}
		d.conn = nil
	}

	conn, err := d.connector.Join(channelID)
	if err != nil {
		return nil, err
	}
	d.conn = conn
	return conn, nil
}

// GoTo seeks within the current track by rebuilding the source with a seek
// offset and hot-swapping it. The voice connection stays up.
func (d *Driver) GoTo(offset time.Duration) {
	d.mu.Lock()
	if !d.playing || d.cur == nil || d.swap == nil {
		d.mu.Unlock()
		log.Printf("[Voice] Nothing is playing, seek ignored")
		return
	}
	audio := d.cur
	swap := d.swap
	opts := d.opts.Merge([]string{"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64)}, nil)
	d.mu.Unlock()

	src, err := d.newSource(audio.StreamURL, opts)
	if err != nil {
		log.Printf("[ERR] [Voice] Unable to open seek source for %q: %v", audio, err)
		return
	}

	// The loop may have been stopped while ffmpeg was starting; a source
	// handed to a dead loop would never be closed.
	d.mu.Lock()
	if d.swap != swap {
		d.mu.Unlock()
		src.Close()
		log.Printf("[Voice] Stream ended during seek, seek ignored")
		return
	}
	select {
	case swap <- src:
	default:
		// A newer source is already queued; it wins.
		d.mu.Unlock()
		src.Close()
		log.Printf("[Voice] Seek lost a race to a newer source, seek ignored")
		return
	}
	audio.SetEndTime(offset)
	d.mu.Unlock()
	log.Printf("[Voice] Seeked %q to %s", audio, offset)
}

// Disconnect stops the playback loop and drops the voice connection. A
// missing connection is a warning, not an error.
func (d *Driver) Disconnect() {
	d.mu.Lock()
	d.stopLocked()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn == nil {
		log.Printf("[Voice] No voice client connected to disconnect")
		return
	}
	if err := conn.Disconnect(); err != nil {
		log.Printf("[ERR] [Voice] Disconnect error: %v", err)
	}
	log.Printf("[Voice] Disconnected from voice")
}

// StopVoice ends the current stream without leaving the voice channel.
func (d *Driver) StopVoice() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		log.Printf("[Voice] No stream running to stop")
		return
	}
	d.stopLocked()
}

func (d *Driver) stopLocked() {
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
		d.swap = nil
	}
}

// IsPlaying reports whether a connection exists and a stream is running.
func (d *Driver) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil && d.playing
}

// CurrentAudio returns the audio bound to the live stream, if any.
func (d *Driver) CurrentAudio() *track.Audio {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur
}
