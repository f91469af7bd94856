/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"time"
)

// EventType enumerates playout event categories.
type EventType string

const (
	EventNowPlaying     EventType = "now_playing"
	EventPlaybackEnded  EventType = "playback_ended"
	EventScheduleUpdate EventType = "schedule_update"
	EventDriftAnomaly   EventType = "drift_anomaly"
)

// Event is one playout observation: which entry, and when.
type Event struct {
	Type    EventType
	EntryID string
	At      time.Time
}

// Subscriber receives events for the types it registered.
type Subscriber chan Event

// Bus is a small in-process pubsub between the playout engine and
// whatever wants to observe it (the play command, future notifiers).
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers one channel for all the given event types.
func (b *Bus) Subscribe(types ...EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	for _, t := range types {
		b.subs[t] = append(b.subs[t], ch)
	}
	b.mu.Unlock()
	return ch
}

// Publish delivers the event to subscribers of its type. Slow
// subscribers drop events rather than blocking the playout engine.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[ev.Type]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Unsubscribe removes the subscriber from every type and closes it.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.subs {
		for i, candidate := range subs {
			if candidate == sub {
				b.subs[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	close(sub)
}
