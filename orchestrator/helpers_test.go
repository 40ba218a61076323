package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFinalEventSurvivesFullBuffer(t *testing.T) {
	h := newHub()
	ch, cancel := h.subscribe()
	defer cancel()

	for range 100 {
		h.publish(Event{Type: EventObservation})
	}
	h.close(Event{Type: EventEnded})

	var last Event
	n := 0
	for e := range ch {
		last = e
		n++
	}
	assert.Equal(t, 32, n, "buffer bounds what a stalled subscriber keeps")
	assert.Equal(t, EventEnded, last.Type)
}

func TestHubCancelAndPublishAfterClose(t *testing.T) {
	h := newHub()
	a, cancelA := h.subscribe()
	b, cancelB := h.subscribe()

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)

	h.publish(Event{Type: EventTimer})
	require.Equal(t, EventTimer, (<-b).Type)

	h.close(Event{Type: EventEnded})
	h.close(Event{Type: EventEnded})
	h.publish(Event{Type: EventObservation})
	cancelB()

	require.Equal(t, EventEnded, (<-b).Type)
	_, open = <-b
	assert.False(t, open)
}
