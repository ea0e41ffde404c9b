package track

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"wavepilot/internal/events"
)

const (
	DefaultMaxQueueSize   = 10000
	DefaultMaxHistorySize = 100
)

// Publisher is the slice of the event bus the queue needs.
type Publisher interface {
	Publish(events.Event)
}

// AudioQueue is the playback state machine: a bounded forward queue, a
// bounded history of previously current tracks, and a single current slot.
// An Audio moves between the three containers, it is never shared. All
// navigation funnels through this type; events go out on the bus as a side
// effect of promotion and queue mutation.
type AudioQueue struct {
	mu             sync.Mutex
	maxQueueSize   int
	maxHistorySize int

	queue   []*Audio
	history []*Audio
	current *Audio

	bus      Publisher
	resolver Resolver
	prober   Prober
}

// New creates an AudioQueue. Non-positive sizes fall back to the defaults.
func New(bus Publisher, resolver Resolver, prober Prober, maxQueueSize, maxHistorySize int) *AudioQueue {
	if maxQueueSize <= 0 {
		maxQueueSize = DefaultMaxQueueSize
	}
	if maxHistorySize < 0 {
		maxHistorySize = DefaultMaxHistorySize
	}
	return &AudioQueue{
		maxQueueSize:   maxQueueSize,
		maxHistorySize: maxHistorySize,
		bus:            bus,
		resolver:       resolver,
		prober:         prober,
	}
}

// Append adds audio to the tail of the forward queue. When the current slot
// is empty the audio is promoted immediately. A full queue drops the audio
// with a log line and returns false; there is no backpressure beyond that.
func (q *AudioQueue) Append(audio *Audio) bool {
	return q.add(audio, false)
}

// AppendLeft adds audio to the head of the forward queue, same admission
// policy as Append.
func (q *AudioQueue) AppendLeft(audio *Audio) bool {
	return q.add(audio, true)
}

func (q *AudioQueue) add(audio *Audio, front bool) bool {
	if audio == nil {
		log.Printf("[ERR] [Queue] Unable to add audio: nil entry")
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.queue) >= q.maxQueueSize {
		log.Printf("[ERR] [Queue] Unable to add audio %q, queue is at capacity %d", audio, q.maxQueueSize)
		return false
	}

	if front {
		q.queue = append([]*Audio{audio}, q.queue...)
	} else {
		q.queue = append(q.queue, audio)
	}
	log.Printf("[Queue] Audio added to queue: %s | id=%s QueueLen=%d", audio, audio.ID, len(q.queue))

	if q.current == nil {
		q.nextLocked()
	} else {
		q.bus.Publish(events.Event{Topic: events.TopicQueueUpdate})
	}
	return true
}

// NextAudio moves the current track (if any) to history and promotes the
// head of the forward queue. With an empty queue the current slot goes
// empty and a no-audio event is published.
func (q *AudioQueue) NextAudio() *Audio {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextLocked()
}

func (q *AudioQueue) nextLocked() *Audio {
	if q.current != nil {
		q.pushHistory(q.current)
		q.current = nil
	}

	if len(q.queue) == 0 {
		q.promote(nil)
		log.Printf("[Queue] Unable to get next audio, queue is empty")
		return nil
	}

	next := q.queue[0]
	q.queue = q.queue[1:]
	q.promote(next)
	log.Printf("[Queue] Retrieved next audio: %s", next)
	return next
}

// PreviousAudio pushes the current track back onto the head of the forward
// queue and promotes the most recent history entry. With empty history the
// call is a logged no-op.
func (q *AudioQueue) PreviousAudio() *Audio {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.history) == 0 {
		log.Printf("[ERR] [Queue] Unable to get previous audio, history is empty")
		return nil
	}

	if q.current != nil {
		q.queue = append([]*Audio{q.current}, q.queue...)
		q.current = nil
	}

	prev := q.history[len(q.history)-1]
	q.history = q.history[:len(q.history)-1]
	q.promote(prev)
	log.Printf("[Queue] Retrieved previous audio: %s", prev)
	return prev
}

// RestartQueue replays the session from the top: the current track returns
// to the forward queue, history is spliced in front of it oldest-first, and
// playback advances to the first entry. Calling it while idle just replays
// the history.
func (q *AudioQueue) RestartQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil {
		q.queue = append([]*Audio{q.current}, q.queue...)
		q.current = nil
	}
	q.queue = append(q.history, q.queue...)
	q.history = nil

	q.nextLocked()
}

// RemoveCurrentAudio drops the current track without recording it in
// history, then advances. Returns the removed title when there was one.
func (q *AudioQueue) RemoveCurrentAudio() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return "", false
	}

	title := q.current.Title
	log.Printf("[Queue] Removed current audio: %s | id=%s", q.current, q.current.ID)
	q.current = nil
	q.nextLocked()
	return title, true
}

// ResetQueue clears everything between sessions. The current slot is
// emptied directly, so no promotion events fire, only queue updates from
// the two clears.
func (q *AudioQueue) ResetQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.clearQueueLocked()
	q.clearHistoryLocked()
	q.current = nil
}

// ClearQueue empties the forward queue.
func (q *AudioQueue) ClearQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearQueueLocked()
}

// ClearHistory empties the history.
func (q *AudioQueue) ClearHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearHistoryLocked()
}

func (q *AudioQueue) clearQueueLocked() {
	q.queue = nil
	q.bus.Publish(events.Event{Topic: events.TopicQueueUpdate})
}

func (q *AudioQueue) clearHistoryLocked() {
	q.history = nil
	q.bus.Publish(events.Event{Topic: events.TopicQueueUpdate})
}

// promote installs audio as the current track. A non-nil audio gets a
// staleness probe first; a stale track is refreshed best-effort and
// promoted either way, leaving a dead link to fail at the transport. The
// matching event is on the bus before promote returns.
func (q *AudioQueue) promote(audio *Audio) {
	if audio != nil && audio.IsStale(q.prober) {
		audio.Refresh(q.resolver)
	}

	q.current = audio
	if audio != nil {
		audio.SetEndTime(0)
		q.bus.Publish(events.Event{Topic: events.TopicNewAudio, Data: audio})
	} else {
		q.bus.Publish(events.Event{Topic: events.TopicNoAudio})
	}
}

func (q *AudioQueue) pushHistory(audio *Audio) {
	q.history = append(q.history, audio)
	if len(q.history) > q.maxHistorySize {
		q.history = q.history[1:]
	}
}

// CurrentAudio returns the occupant of the current slot, if any.
func (q *AudioQueue) CurrentAudio() *Audio {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Len returns the forward queue length.
func (q *AudioQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// HistoryLen returns the history length.
func (q *AudioQueue) HistoryLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.history)
}

// QueueString renders the first n queued tracks as numbered lines. Empty
// string when there is nothing to show.
func (q *AudioQueue) QueueString(n int) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var sb strings.Builder
	for i := 0; i < n && i < len(q.queue); i++ {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q.queue[i])
	}
	return sb.String()
}

// HistoryString renders the last n history entries, most recent first.
func (q *AudioQueue) HistoryString(n int) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var sb strings.Builder
	for i := 0; i < n && i < len(q.history); i++ {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q.history[len(q.history)-1-i])
	}
	return sb.String()
}

func (q *AudioQueue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var sb strings.Builder
	if q.current != nil {
		fmt.Fprintf(&sb, "Current audio: %s\n", q.current)
	} else {
		sb.WriteString("Current audio: none\n")
	}
	sb.WriteString("Next audio:\n")
	for i, a := range q.queue {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, a)
	}
	sb.WriteString("Previous audio:\n")
	for i, a := range q.history {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, a)
	}
	return sb.String()
}
