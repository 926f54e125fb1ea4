package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewBus()
	a, cancelA := b.Subscribe(1)
	c, cancelC := b.Subscribe(1)
	defer cancelC()
	require.Equal(t, 2, b.Subscribers())

	b.Publish(Event{Topic: "squire/analysis/start", Timestamp: time.Now()})
	assert.Equal(t, "squire/analysis/start", (<-a).Topic)
	assert.Equal(t, "squire/analysis/start", (<-c).Topic)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())
}

func TestPublishSkipsFullSubscribers(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(Event{Topic: "first"})
	b.Publish(Event{Topic: "second"})
	assert.Equal(t, "first", (<-ch).Topic)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %q", ev.Topic)
	default:
	}
}
