/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	sub := bus.Subscribe(EventNowPlaying, EventPlaybackEnded)
	other := bus.Subscribe(EventDriftAnomaly)

	at := time.Now()
	bus.Publish(Event{Type: EventNowPlaying, EntryID: "e1", At: at})
	bus.Publish(Event{Type: EventScheduleUpdate, EntryID: "ignored"})

	select {
	case ev := <-sub:
		if ev.Type != EventNowPlaying || ev.EntryID != "e1" || !ev.At.Equal(at) {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("subscribed event not delivered")
	}
	select {
	case ev := <-sub:
		t.Fatalf("received event for unsubscribed type: %+v", ev)
	default:
	}
	select {
	case ev := <-other:
		t.Fatalf("wrong subscriber got event: %+v", ev)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying)

	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(Event{Type: EventNowPlaying, EntryID: "e"})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("queue holds %d, want it full at %d with the rest dropped", len(sub), cap(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	bus := NewBus()
	sub := bus.Subscribe(EventNowPlaying, EventPlaybackEnded)

	bus.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(Event{Type: EventNowPlaying, EntryID: "e1"})
}
