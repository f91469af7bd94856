/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/config"
	"github.com/friendsincode/hugin_tv/internal/events"
	"github.com/friendsincode/hugin_tv/internal/media"
	"github.com/friendsincode/hugin_tv/internal/models"
	"github.com/friendsincode/hugin_tv/internal/schedule"
)

const (
	// Back-off while the playback task still holds a queued item.
	queueFullBackoff = 5 * time.Second
	// Back-off when the schedule has no next entry yet; the builder may
	// extend it concurrently.
	emptyScheduleBackoff = 10 * time.Second
)

// trackResolver resolves stream indices for a media path.
type trackResolver interface {
	Resolve(ctx context.Context, path string) media.TrackSelection
}

// Engine couples the control loop with the playback task. The two run
// concurrently and communicate only over the work and event queues;
// the schedule store is the sole shared resource and only the control
// loop writes actual-timing fields.
type Engine struct {
	store    *schedule.Store
	resolver trackResolver
	bus      *events.Bus
	playback *playbackTask
	logger   zerolog.Logger
}

// NewEngine constructs the playout engine from process configuration.
func NewEngine(db *gorm.DB, cfg *config.Config, bus *events.Bus, logger zerolog.Logger) *Engine {
	profile := streamProfile{
		FFmpegBin:   cfg.FFmpegBin,
		Width:       cfg.OutputWidth,
		Height:      cfg.OutputHeight,
		Watermark:   cfg.WatermarkPath,
		Destination: cfg.StreamTarget,
	}
	return &Engine{
		store:    schedule.NewStore(db, logger),
		resolver: media.NewResolver(media.NewProber(cfg.FFprobeBin), cfg.AudioLanguage, logger),
		bus:      bus,
		playback: newPlaybackTask(profile, logger),
		logger:   logger.With().Str("component", "playout_control").Logger(),
	}
}

// startupPlan decides how playback begins relative to now: a positive
// skip when the entry is already underway, a positive wait when it has
// not started yet.
func startupPlan(entry *models.ScheduleEntry, now time.Time) (skip, wait time.Duration) {
	if now.After(entry.StartTime) {
		return now.Sub(entry.StartTime), 0
	}
	return 0, entry.StartTime.Sub(now)
}

// Run executes the playout engine until the schedule proves empty at
// startup or the context is cancelled. It finds the entry covering now
// (or the next playable one), hands it to the playback task, then
// stays one item ahead while persisting actual timing events.
func (e *Engine) Run(ctx context.Context) error {
	now := time.Now()

	first, err := e.store.EntryCovering(ctx, now)
	if err != nil {
		return err
	}
	if first == nil {
		first, err = e.store.NextPlayableFrom(ctx, now)
		if err != nil {
			return err
		}
	}
	if first == nil {
		e.logger.Info().Msg("nothing exists in schedule")
		return nil
	}

	skip, wait := startupPlan(first, now)
	if wait > 0 {
		e.logger.Info().Dur("wait", wait).Str("title", first.Title).Msg("waiting for next scheduled entry")
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}

	go e.playback.run()
	defer e.playback.stop()

	e.playback.items <- e.makeItem(ctx, first, skip, time.Time{})
	previous := first

	e.logger.Info().Msg("playout engine started")
	for {
		if err := ctx.Err(); err != nil {
			e.logger.Info().Msg("playout engine stopping")
			return err
		}

		e.drainEvents(ctx)

		if len(e.playback.items) > 0 {
			if !sleepCtx(ctx, queueFullBackoff) {
				return ctx.Err()
			}
			continue
		}

		next, err := e.store.NextPlayable(ctx, previous.StartTime)
		if err != nil {
			e.logger.Error().Err(err).Msg("failed to load next schedule entry")
			if !sleepCtx(ctx, emptyScheduleBackoff) {
				return ctx.Err()
			}
			continue
		}
		if next == nil {
			e.logger.Debug().Msg("nothing further in schedule yet")
			if !sleepCtx(ctx, emptyScheduleBackoff) {
				return ctx.Err()
			}
			continue
		}

		// A deliberate gap in the grid becomes a sleep target for the
		// playback task instead of free-running into the next entry.
		var waitUntil time.Time
		if !next.StartTime.Equal(previous.EndTime) {
			waitUntil = next.StartTime
		}

		e.playback.items <- e.makeItem(ctx, next, 0, waitUntil)
		previous = next
	}
}

func (e *Engine) makeItem(ctx context.Context, entry *models.ScheduleEntry, skip time.Duration, waitUntil time.Time) playItem {
	path := ""
	if entry.Path != nil {
		path = *entry.Path
	}
	return playItem{
		EntryID:        entry.ID,
		Path:           path,
		Title:          entry.Title,
		ScheduledStart: entry.StartTime,
		SkipOffset:     skip,
		WaitUntil:      waitUntil,
		Tracks:         e.resolver.Resolve(ctx, path),
	}
}

// drainEvents persists all pending actual-timing events.
func (e *Engine) drainEvents(ctx context.Context) {
	for {
		select {
		case ev := <-e.playback.events:
			e.persistEvent(ctx, ev)
		default:
			return
		}
	}
}

func (e *Engine) persistEvent(ctx context.Context, ev playbackEvent) {
	switch {
	case ev.StartedAt != nil:
		if err := e.store.MarkStarted(ctx, ev.EntryID, *ev.StartedAt); err != nil {
			e.logger.Error().Err(err).Str("entry", ev.EntryID).Msg("failed to persist actual start")
		}
		e.bus.Publish(events.Event{Type: events.EventNowPlaying, EntryID: ev.EntryID, At: *ev.StartedAt})
	case ev.EndedAt != nil:
		if err := e.store.MarkCompleted(ctx, ev.EntryID, *ev.EndedAt); err != nil {
			e.logger.Error().Err(err).Str("entry", ev.EntryID).Msg("failed to persist actual end")
		}
		e.bus.Publish(events.Event{Type: events.EventPlaybackEnded, EntryID: ev.EntryID, At: *ev.EndedAt})
	case ev.HeldUntil != nil:
		e.bus.Publish(events.Event{Type: events.EventDriftAnomaly, EntryID: ev.EntryID, At: *ev.HeldUntil})
	}
}

// sleepCtx blocks for d, reporting false when the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
