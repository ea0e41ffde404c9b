// Package events provides the in-process pub/sub bus that connects the
// audio queue to the playback driver. The bus is an explicit dependency,
// handed to both sides at construction, so a session's subscriptions never
// leak into another session and tests can substitute a recorder.
package events

import (
	"log"
	"sync"
)

type Topic string

const (
	// TopicNewAudio carries the track that just became current (Data *track.Audio).
	TopicNewAudio Topic = "new_audio"
	// TopicNoAudio signals that the current slot went empty.
	TopicNoAudio Topic = "no_audio"
	// TopicQueueUpdate signals a queue mutation that did not change the current slot.
	TopicQueueUpdate Topic = "queue_update"
	// TopicPlaybackEnded reports a finished playback attempt. Err is nil on
	// natural completion and non-nil on transport failure.
	TopicPlaybackEnded Topic = "playback_ended"
)

type Event struct {
	Topic Topic
	Data  any
	Err   error
}

type Handler func(Event)

// Bus delivers events to subscribers in publish order. Publish never blocks
// the caller: each subscriber has its own delivery goroutine working through
// a pending list.
type Bus struct {
	mu     sync.Mutex
	subs   map[Topic][]*subscriber
	closed bool
	wg     sync.WaitGroup
}

type subscriber struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	done    bool
	fn      Handler
}

func New() *Bus {
	return &Bus{subs: make(map[Topic][]*subscriber)}
}

// Subscribe registers fn for a topic. Handlers for one subscription run
// sequentially, in the order the events were published.
func (b *Bus) Subscribe(topic Topic, fn Handler) {
	sub := &subscriber{fn: fn}
	sub.cond = sync.NewCond(&sub.mu)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		log.Printf("[Bus] Subscribe on closed bus ignored | topic=%s", topic)
		return
	}
	b.subs[topic] = append(b.subs[topic], sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sub.loop()
	}()
}

// Publish hands evt to every subscriber of its topic. By the time Publish
// returns the event is queued for delivery, so publish order is preserved
// per subscriber.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		log.Printf("[Bus] Event dropped, bus closed | topic=%s", evt.Topic)
		return
	}
	subs := b.subs[evt.Topic]
	b.mu.Unlock()

	for _, sub := range subs {
		sub.push(evt)
	}
}

// Close stops delivery. Subscribers finish their already-published events
// before Close returns.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*subscriber
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	b.wg.Wait()
}

func (s *subscriber) push(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.pending = append(s.pending, evt)
	s.cond.Signal()
}

func (s *subscriber) stop() {
	s.mu.Lock()
	s.done = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber) loop() {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.done {
			s.cond.Wait()
		}
		if len(s.pending) == 0 && s.done {
			s.mu.Unlock()
			return
		}
		evt := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.fn(evt)
	}
}
