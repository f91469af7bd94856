/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/events"
	"github.com/friendsincode/hugin_tv/internal/media"
	"github.com/friendsincode/hugin_tv/internal/models"
	"github.com/friendsincode/hugin_tv/internal/schedule"
)

func TestStartupPlan(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entry := &models.ScheduleEntry{StartTime: start, EndTime: start.Add(30 * time.Minute)}

	// Joining 10 minutes into the entry resumes with a 600s skip.
	skip, wait := startupPlan(entry, start.Add(10*time.Minute))
	if skip != 600*time.Second || wait != 0 {
		t.Fatalf("mid-entry: skip=%v wait=%v, want 600s, 0", skip, wait)
	}

	// Joining early waits until the planned start.
	skip, wait = startupPlan(entry, start.Add(-2*time.Minute))
	if skip != 0 || wait != 2*time.Minute {
		t.Fatalf("early: skip=%v wait=%v, want 0, 2m", skip, wait)
	}

	// Exactly on time: no skip, no wait.
	skip, wait = startupPlan(entry, start)
	if skip != 0 || wait != 0 {
		t.Fatalf("on time: skip=%v wait=%v, want 0, 0", skip, wait)
	}
}

type fixedResolver struct{ sel media.TrackSelection }

func (f fixedResolver) Resolve(ctx context.Context, path string) media.TrackSelection {
	return f.sel
}

func testEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	e := &Engine{
		store:    schedule.NewStore(db, zerolog.Nop()),
		resolver: fixedResolver{sel: media.TrackSelection{VideoIndex: 0, AudioIndex: 1}},
		bus:      events.NewBus(),
		playback: newPlaybackTask(streamProfile{FFmpegBin: "ffmpeg"}, zerolog.Nop()),
		logger:   zerolog.Nop(),
	}
	return e, db
}

func TestRun_EmptySchedule(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)

	// An empty schedule at startup is a clean exit, not an error.
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run on empty schedule: %v", err)
	}
}

func TestPersistEvent(t *testing.T) {
	t.Parallel()
	e, db := testEngine(t)
	ctx := context.Background()

	path := "/media/show.mkv"
	entry := models.ScheduleEntry{
		StartTime: time.Now(),
		EndTime:   time.Now().Add(30 * time.Minute),
		Tag:       models.TagTVEpisode,
		Title:     "Orbit Diner S1 E1",
		Path:      &path,
	}
	if err := e.store.Insert(ctx, &entry); err != nil {
		t.Fatalf("insert: %v", err)
	}

	nowPlaying := e.bus.Subscribe(events.EventNowPlaying)
	defer e.bus.Unsubscribe(nowPlaying)

	started := time.Now().Truncate(time.Second)
	e.persistEvent(ctx, playbackEvent{EntryID: entry.ID, StartedAt: &started})

	var got models.ScheduleEntry
	if err := db.First(&got, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ActualStartTime == nil || !got.ActualStartTime.Equal(started) {
		t.Fatalf("actual start not persisted: %+v", got.ActualStartTime)
	}
	if got.Completed {
		t.Fatal("entry marked completed on start")
	}

	select {
	case ev := <-nowPlaying:
		if ev.EntryID != entry.ID {
			t.Fatalf("event for wrong entry: %s", ev.EntryID)
		}
	default:
		t.Fatal("no now-playing event published")
	}

	ended := started.Add(30 * time.Minute)
	e.persistEvent(ctx, playbackEvent{EntryID: entry.ID, EndedAt: &ended})
	if err := db.First(&got, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Completed || got.ActualEndTime == nil || !got.ActualEndTime.Equal(ended) {
		t.Fatalf("completion not persisted: completed=%v end=%v", got.Completed, got.ActualEndTime)
	}
}

func TestPersistEvent_DriftAnomalyPublished(t *testing.T) {
	t.Parallel()
	e, _ := testEngine(t)
	ctx := context.Background()

	anomalies := e.bus.Subscribe(events.EventDriftAnomaly)
	defer e.bus.Unsubscribe(anomalies)

	heldUntil := time.Now().Add(2 * time.Hour)
	e.persistEvent(ctx, playbackEvent{EntryID: "entry-1", HeldUntil: &heldUntil})

	select {
	case ev := <-anomalies:
		if ev.EntryID != "entry-1" || !ev.At.Equal(heldUntil) {
			t.Fatalf("unexpected anomaly event %+v", ev)
		}
	default:
		t.Fatal("no drift anomaly event published")
	}
}

func TestPlaybackTask_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	task := newPlaybackTask(streamProfile{FFmpegBin: "ffmpeg"}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		task.run()
		close(done)
	}()

	task.stop()
	task.stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after stop")
	}
	if !task.stopped() {
		t.Fatal("task not marked stopped")
	}
}

func TestPlaybackTask_StartFailureStillCompletes(t *testing.T) {
	t.Parallel()
	task := newPlaybackTask(streamProfile{FFmpegBin: "/nonexistent/ffmpeg"}, zerolog.Nop())

	start := time.Now().Add(-time.Minute)
	task.play(playItem{
		EntryID:        "entry-1",
		Path:           "/media/missing.mkv",
		ScheduledStart: start,
	})

	var sawStart, sawEnd bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-task.events:
			if ev.StartedAt != nil {
				sawStart = true
			}
			if ev.EndedAt != nil {
				sawEnd = true
			}
		default:
		}
	}
	if !sawStart || !sawEnd {
		t.Fatalf("expected start and completion events, got start=%v end=%v", sawStart, sawEnd)
	}
}
