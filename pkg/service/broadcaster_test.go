package service_test

import (
	"fmt"
	"testing"

	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
	"github.com/stretchr/testify/assert"
)

func TestBroadcaster(t *testing.T) {
	t.Run("FansOutToEverySubscriber", func(t *testing.T) {
		b := service.NewBroadcaster()
		first, cancelFirst := b.Subscribe(4)
		defer cancelFirst()
		second, cancelSecond := b.Subscribe(4)
		defer cancelSecond()

		b.Publish(models.Event{Type: models.LogAppendedEvent, Line: "hello"})

		assert.Equal(t, "hello", (<-first).Line)
		assert.Equal(t, "hello", (<-second).Line)
	})

	t.Run("FullSubscriberDropsEvents", func(t *testing.T) {
		b := service.NewBroadcaster()
		events, cancel := b.Subscribe(1)
		defer cancel()

		b.Publish(models.Event{Line: "kept"})
		b.Publish(models.Event{Line: "dropped"})

		assert.Equal(t, "kept", (<-events).Line)
		select {
		case ev := <-events:
			t.Fatalf("unexpected event %v", ev)
		default:
		}
	})

	t.Run("UnsubscribeClosesChannel", func(t *testing.T) {
		b := service.NewBroadcaster()
		events, cancel := b.Subscribe(1)
		cancel()
		cancel()

		_, ok := <-events
		assert.False(t, ok)
		b.Publish(models.Event{Line: "nobody listens"})
	})

	t.Run("CloseEndsAllSubscriptions", func(t *testing.T) {
		b := service.NewBroadcaster()
		events, cancel := b.Subscribe(1)
		b.Close()
		cancel()

		_, ok := <-events
		assert.False(t, ok)

		late, _ := b.Subscribe(1)
		_, ok = <-late
		assert.False(t, ok)
	})

	t.Run("LosslessSubscriberKeepsEveryEvent", func(t *testing.T) {
		b := service.NewBroadcaster()
		events, cancel := b.SubscribeLossless()

		for i := 0; i < 5000; i++ {
			b.Publish(models.Event{Line: fmt.Sprintf("line %d", i)})
		}
		cancel()

		var got []string
		for ev := range events {
			got = append(got, ev.Line)
		}
		assert.Len(t, got, 5000)
		assert.Equal(t, "line 0", got[0])
		assert.Equal(t, "line 4999", got[4999])
	})

	t.Run("CloseEndsLosslessSubscriptions", func(t *testing.T) {
		b := service.NewBroadcaster()
		events, cancel := b.SubscribeLossless()
		defer cancel()
		b.Publish(models.Event{Line: "queued"})
		b.Close()

		assert.Equal(t, "queued", (<-events).Line)
		_, ok := <-events
		assert.False(t, ok)

		late, _ := b.SubscribeLossless()
		_, ok = <-late
		assert.False(t, ok)
	})
}
