package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	var got []int
	bus.Subscribe(TopicQueueUpdate, func(evt Event) {
		mu.Lock()
		got = append(got, evt.Data.(int))
		mu.Unlock()
	})

	for i := 0; i < 100; i++ {
		bus.Publish(Event{Topic: TopicQueueUpdate, Data: i})
	}
	bus.Close()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := New()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		bus.Subscribe(TopicNewAudio, func(Event) { wg.Done() })
	}

	bus.Publish(Event{Topic: TopicNewAudio})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
	bus.Close()
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	bus := New()

	calls := make(chan Topic, 2)
	bus.Subscribe(TopicNoAudio, func(evt Event) { calls <- evt.Topic })

	bus.Publish(Event{Topic: TopicNewAudio})
	bus.Publish(Event{Topic: TopicNoAudio})
	bus.Close()

	require.Len(t, calls, 1)
	assert.Equal(t, TopicNoAudio, <-calls)
}

func TestPublishAfterCloseIsSafe(t *testing.T) {
	bus := New()
	bus.Subscribe(TopicNewAudio, func(Event) { t.Error("handler called after close") })
	bus.Close()

	bus.Publish(Event{Topic: TopicNewAudio})
	bus.Close() // double close is a no-op
}
