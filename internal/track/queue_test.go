package track

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"testing"

	"wavepilot/internal/events"
)

// recorderBus captures published events synchronously.
type recorderBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recorderBus) Publish(evt events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *recorderBus) topics() []events.Topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Topic, len(b.events))
	for i, evt := range b.events {
		out[i] = evt.Topic
	}
	return out
}

func (b *recorderBus) last() (events.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return events.Event{}, false
	}
	return b.events[len(b.events)-1], true
}

func (b *recorderBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// fakeProber marks listed URLs as stale.
type fakeProber struct {
	stale map[string]bool
}

func (p *fakeProber) Probe(url string) error {
	if p.stale[url] {
		return errors.New("connection refused")
	}
	return nil
}

// fakeResolver returns a canned result or fails.
type fakeResolver struct {
	result *TrackInfo
	calls  int
}

func (r *fakeResolver) Resolve(string) (*TrackInfo, error) {
	r.calls++
	if r.result == nil {
		return nil, errors.New("no result")
	}
	return r.result, nil
}

func newTestQueue(maxQueue, maxHistory int) (*AudioQueue, *recorderBus) {
	bus := &recorderBus{}
	q := New(bus, &fakeResolver{}, &fakeProber{}, maxQueue, maxHistory)
	return q, bus
}

func testAudio(title string) *Audio {
	return NewAudio("user-1", "tester", "voice-1", "text-1", &TrackInfo{
		StreamURL:  "http://stream.example/" + title,
		WebpageURL: "http://page.example/" + title,
		Title:      title,
		Duration:   180e9,
	})
}

func TestAppendAcceptsBelowCapacity(t *testing.T) {
	q, _ := newTestQueue(5, 5)

	// First append promotes immediately, so only the rest count toward length.
	for i := 0; i < 5; i++ {
		if ok := q.Append(testAudio(fmt.Sprintf("t%d", i))); !ok {
			t.Fatalf("append %d rejected below capacity", i)
		}
	}
	if q.Len() != 4 {
		t.Errorf("expected queue length 4 (one promoted), got %d", q.Len())
	}
}

func TestAppendRejectsAtCapacity(t *testing.T) {
	q, bus := newTestQueue(2, 5)

	q.Append(testAudio("current")) // promoted
	q.Append(testAudio("q1"))
	q.Append(testAudio("q2"))
	bus.reset()

	if ok := q.Append(testAudio("overflow")); ok {
		t.Error("append accepted at capacity")
	}
	if q.Len() != 2 {
		t.Errorf("queue length changed on rejected append: %d", q.Len())
	}
	if topics := bus.topics(); len(topics) != 0 {
		t.Errorf("rejected append published events: %v", topics)
	}
}

func TestAppendPromotesWhenIdle(t *testing.T) {
	q, bus := newTestQueue(10, 10)
	a := testAudio("A")
	b := testAudio("B")

	q.Append(a)

	if cur := q.CurrentAudio(); cur != a {
		t.Fatalf("expected A promoted, got %v", cur)
	}
	evt, ok := bus.last()
	if !ok || evt.Topic != events.TopicNewAudio || evt.Data != a {
		t.Errorf("expected new_audio(A), got %+v", evt)
	}
	if a.EndTime.IsZero() {
		t.Error("promotion did not set end time")
	}

	q.Append(b)
	if q.CurrentAudio() != a {
		t.Error("second append replaced current track")
	}
	if q.Len() != 1 {
		t.Errorf("expected B queued, length %d", q.Len())
	}
	evt, _ = bus.last()
	if evt.Topic != events.TopicQueueUpdate {
		t.Errorf("expected queue_update for non-promoting append, got %s", evt.Topic)
	}

	q.NextAudio()
	if q.CurrentAudio() != b {
		t.Error("expected B promoted after NextAudio")
	}
	if q.HistoryLen() != 1 {
		t.Errorf("expected A in history, history length %d", q.HistoryLen())
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, length %d", q.Len())
	}
}

func TestAppendLeftOrdersBeforeQueue(t *testing.T) {
	q, _ := newTestQueue(10, 10)
	q.Append(testAudio("current"))
	q.Append(testAudio("tail"))
	head := testAudio("head")
	q.AppendLeft(head)

	if next := q.NextAudio(); next != head {
		t.Errorf("expected AppendLeft entry first, got %v", next)
	}
}

func TestNextAudioOnEmptyQueue(t *testing.T) {
	q, bus := newTestQueue(10, 10)

	if next := q.NextAudio(); next != nil {
		t.Errorf("expected nil from empty queue, got %v", next)
	}
	if q.CurrentAudio() != nil {
		t.Error("current slot not empty")
	}
	evt, ok := bus.last()
	if !ok || evt.Topic != events.TopicNoAudio {
		t.Errorf("expected no_audio event, got %+v", evt)
	}
}

func TestNextAudioMovesCurrentToHistory(t *testing.T) {
	q, _ := newTestQueue(10, 10)
	a := testAudio("A")
	q.Append(a)

	q.NextAudio()

	if q.HistoryLen() != 1 {
		t.Fatalf("expected history length 1, got %d", q.HistoryLen())
	}
	if q.CurrentAudio() != nil {
		t.Error("current slot should be empty after draining")
	}
}

func TestPreviousAudioRestoresPriorState(t *testing.T) {
	q, bus := newTestQueue(10, 10)
	a := testAudio("A")
	b := testAudio("B")
	c := testAudio("C")
	q.Append(a) // current
	q.Append(b)
	q.Append(c)

	q.NextAudio() // current: B, history: [A], queue: [C]
	q.PreviousAudio()

	if q.CurrentAudio() != a {
		t.Errorf("expected A current again, got %v", q.CurrentAudio())
	}
	if q.HistoryLen() != 0 {
		t.Errorf("expected empty history, got %d", q.HistoryLen())
	}
	if next := q.NextAudio(); next != b {
		t.Errorf("expected B back at queue head, got %v", next)
	}
	evt, _ := bus.last()
	if evt.Topic != events.TopicNewAudio {
		t.Errorf("expected new_audio, got %s", evt.Topic)
	}
}

func TestPreviousAudioWithEmptyHistory(t *testing.T) {
	q, bus := newTestQueue(10, 10)
	a := testAudio("A")
	q.Append(a)
	bus.reset()

	if prev := q.PreviousAudio(); prev != nil {
		t.Errorf("expected nil, got %v", prev)
	}
	if q.CurrentAudio() != a {
		t.Error("no-op previous mutated current slot")
	}
	if topics := bus.topics(); len(topics) != 0 {
		t.Errorf("no-op previous published events: %v", topics)
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	q, _ := newTestQueue(100, 3)
	for i := 0; i < 6; i++ {
		q.Append(testAudio(fmt.Sprintf("t%d", i)))
	}
	// Drain everything into history.
	for q.CurrentAudio() != nil || q.Len() > 0 {
		q.NextAudio()
	}

	if q.HistoryLen() != 3 {
		t.Fatalf("history exceeded max: %d", q.HistoryLen())
	}
	got := q.HistoryString(3)
	want := "1. t5\n2. t4\n3. t3\n"
	if got != want {
		t.Errorf("history kept wrong entries:\ngot  %q\nwant %q", got, want)
	}
}

func TestOwnershipIsDisjoint(t *testing.T) {
	q, _ := newTestQueue(100, 100)
	tracks := make([]*Audio, 8)
	for i := range tracks {
		tracks[i] = testAudio(fmt.Sprintf("t%d", i))
		q.Append(tracks[i])
	}

	ops := []func(){
		func() { q.NextAudio() },
		func() { q.NextAudio() },
		func() { q.PreviousAudio() },
		func() { q.NextAudio() },
		func() { q.RemoveCurrentAudio() },
		func() { q.PreviousAudio() },
		func() { q.RestartQueue() },
	}
	for i, op := range ops {
		op()
		assertDisjoint(t, q, i)
	}
}

func assertDisjoint(t *testing.T, q *AudioQueue, step int) {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[*Audio]string)
	check := func(a *Audio, where string) {
		if prev, dup := seen[a]; dup {
			t.Fatalf("step %d: audio %s owned by both %s and %s", step, a, prev, where)
		}
		seen[a] = where
	}
	if q.current != nil {
		check(q.current, "current")
	}
	for _, a := range q.queue {
		check(a, "queue")
	}
	for _, a := range q.history {
		check(a, "history")
	}
}

func TestRestartQueueReplaysInOriginalOrder(t *testing.T) {
	q, _ := newTestQueue(100, 100)
	titles := []string{"t0", "t1", "t2", "t3", "t4"}
	for _, title := range titles {
		q.Append(testAudio(title))
	}
	// Play t0..t2, leaving t3, t4 queued.
	q.NextAudio()
	q.NextAudio()

	q.RestartQueue()

	var replayed []string
	for cur := q.CurrentAudio(); cur != nil; {
		replayed = append(replayed, cur.Title)
		cur = q.NextAudio()
	}
	if len(replayed) != len(titles) {
		t.Fatalf("expected %d tracks replayed, got %d: %v", len(titles), len(replayed), replayed)
	}
	for i, title := range titles {
		if replayed[i] != title {
			t.Errorf("position %d: expected %s, got %s", i, title, replayed[i])
		}
	}
}

func TestRestartQueueWhileIdle(t *testing.T) {
	q, _ := newTestQueue(100, 100)
	q.Append(testAudio("A"))
	q.Append(testAudio("B"))
	q.NextAudio()
	q.NextAudio() // drained, current empty, history [A, B]

	q.RestartQueue()

	if cur := q.CurrentAudio(); cur == nil || cur.Title != "A" {
		t.Errorf("expected replay from A, got %v", cur)
	}
}

func TestRemoveCurrentAudio(t *testing.T) {
	q, _ := newTestQueue(10, 10)
	q.Append(testAudio("A"))
	q.Append(testAudio("B"))

	title, ok := q.RemoveCurrentAudio()
	if !ok || title != "A" {
		t.Fatalf("expected removal of A, got %q ok=%v", title, ok)
	}
	if q.HistoryLen() != 0 {
		t.Error("removed track ended up in history")
	}
	if cur := q.CurrentAudio(); cur == nil || cur.Title != "B" {
		t.Errorf("expected B promoted, got %v", cur)
	}

	q.ResetQueue()
	if _, ok := q.RemoveCurrentAudio(); ok {
		t.Error("removal reported success with empty current slot")
	}
}

func TestResetQueue(t *testing.T) {
	q, bus := newTestQueue(10, 10)
	for i := 0; i < 4; i++ {
		q.Append(testAudio(fmt.Sprintf("t%d", i)))
	}
	q.NextAudio()
	bus.reset()

	q.ResetQueue()

	if q.Len() != 0 || q.HistoryLen() != 0 || q.CurrentAudio() != nil {
		t.Error("reset left state behind")
	}
	topics := bus.topics()
	if len(topics) != 2 {
		t.Fatalf("expected exactly two queue_update events, got %v", topics)
	}
	for _, topic := range topics {
		if topic != events.TopicQueueUpdate {
			t.Errorf("reset published %s", topic)
		}
	}
}

func TestPromotionRefreshesStaleAudio(t *testing.T) {
	bus := &recorderBus{}
	fresh := &TrackInfo{
		StreamURL:  "http://stream.example/fresh",
		WebpageURL: "http://page.example/fresh",
		Title:      "fresh title",
		Duration:   60e9,
	}
	resolver := &fakeResolver{result: fresh}
	prober := &fakeProber{stale: map[string]bool{"http://stream.example/old": true}}
	q := New(bus, resolver, prober, 10, 10)

	a := testAudio("old")
	a.StreamURL = "http://stream.example/old"
	q.Append(a)

	if resolver.calls != 1 {
		t.Fatalf("expected one refresh, got %d", resolver.calls)
	}
	if a.StreamURL != fresh.StreamURL || a.Title != fresh.Title {
		t.Error("stale track was not refreshed before promotion")
	}
	if q.CurrentAudio() != a {
		t.Error("refreshed track not promoted")
	}
}

func TestPromotionProceedsWhenRefreshFails(t *testing.T) {
	bus := &recorderBus{}
	resolver := &fakeResolver{} // always fails
	prober := &fakeProber{stale: map[string]bool{"http://stream.example/dead": true}}
	q := New(bus, resolver, prober, 10, 10)

	a := testAudio("dead")
	a.StreamURL = "http://stream.example/dead"
	q.Append(a)

	if q.CurrentAudio() != a {
		t.Error("unrefreshable track was not promoted")
	}
	if a.StreamURL != "http://stream.example/dead" {
		t.Error("failed refresh mutated fields")
	}
	evt, _ := bus.last()
	if evt.Topic != events.TopicNewAudio {
		t.Errorf("expected new_audio despite failed refresh, got %s", evt.Topic)
	}
}

func TestQueueStrings(t *testing.T) {
	q, _ := newTestQueue(10, 10)

	if s := q.QueueString(5); s != "" {
		t.Errorf("expected empty render, got %q", s)
	}

	for _, title := range []string{"cur", "one", "two", "three"} {
		q.Append(testAudio(title))
	}

	if got, want := q.QueueString(2), "1. one\n2. two\n"; got != want {
		t.Errorf("queue render: got %q want %q", got, want)
	}

	q.NextAudio() // cur -> history
	if got, want := q.HistoryString(3), "1. cur\n"; got != want {
		t.Errorf("history render: got %q want %q", got, want)
	}
}

func TestAppendReportsEntryIdentity(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	q, _ := newTestQueue(10, 10)
	a := testAudio("tracked")
	q.Append(a)

	if !strings.Contains(buf.String(), a.ID.String()) {
		t.Errorf("append log does not carry the entry id %s:\n%s", a.ID, buf.String())
	}
}
