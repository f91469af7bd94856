/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hugin_tv/internal/media"
	"github.com/friendsincode/hugin_tv/internal/telemetry"
)

// A dequeue more than this far ahead of the scheduled start is a drift
// anomaly: the task waits instead of playing early.
const driftAnomalyThreshold = time.Hour

// dequeueTimeout bounds each blocking receive so the loop can re-check
// the stop flag.
const dequeueTimeout = 5 * time.Second

// playItem is one unit of work handed from the control loop to the
// playback task.
type playItem struct {
	EntryID        string
	Path           string
	Title          string
	ScheduledStart time.Time
	SkipOffset     time.Duration
	WaitUntil      time.Time // sleep target for scheduled gaps; zero when contiguous
	Tracks         media.TrackSelection
}

// playbackEvent reports actual timing back to the control loop.
// Exactly one of StartedAt / EndedAt / HeldUntil is set; HeldUntil
// flags a drift anomaly hold before the entry's scheduled start.
type playbackEvent struct {
	EntryID   string
	StartedAt *time.Time
	EndedAt   *time.Time
	HeldUntil *time.Time
}

// streamProfile carries the fixed output parameters of the channel.
type streamProfile struct {
	FFmpegBin   string
	Width       int
	Height      int
	Watermark   string
	Destination string
}

// playbackTask owns at most one child streaming process at a time. It
// consumes items from the work queue and reports actual timing on the
// events queue.
type playbackTask struct {
	profile streamProfile
	items   chan playItem
	events  chan playbackEvent
	logger  zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}

	mu   sync.Mutex
	proc *exec.Cmd
}

func newPlaybackTask(profile streamProfile, logger zerolog.Logger) *playbackTask {
	return &playbackTask{
		profile: profile,
		// Lookahead is one item; a single slot keeps the control loop's
		// queue-depth check meaningful.
		items:  make(chan playItem, 1),
		events: make(chan playbackEvent, 16),
		logger: logger.With().Str("component", "playback_task").Logger(),
		stopCh: make(chan struct{}),
	}
}

func (t *playbackTask) run() {
	for !t.stopped() {
		select {
		case item := <-t.items:
			t.play(item)
		case <-time.After(dequeueTimeout):
		case <-t.stopCh:
			return
		}
	}
}

func (t *playbackTask) play(item playItem) {
	now := time.Now()

	if !item.ScheduledStart.IsZero() && item.ScheduledStart.Sub(now) > driftAnomalyThreshold {
		telemetry.DriftAnomalies.Inc()
		t.logger.Error().
			Str("entry", item.EntryID).
			Time("scheduled_start", item.ScheduledStart).
			Msg("scheduled start is over an hour away, holding playback until then")
		held := item.ScheduledStart
		t.events <- playbackEvent{EntryID: item.EntryID, HeldUntil: &held}
		if !t.sleepUntil(item.ScheduledStart) {
			return
		}
	} else if !item.WaitUntil.IsZero() && item.WaitUntil.After(now) {
		t.logger.Info().
			Str("entry", item.EntryID).
			Dur("gap", time.Until(item.WaitUntil)).
			Msg("sleeping through scheduled gap")
		if !t.sleepUntil(item.WaitUntil) {
			return
		}
	}

	started := time.Now()
	t.events <- playbackEvent{EntryID: item.EntryID, StartedAt: &started}
	telemetry.PlaybacksStarted.Inc()

	args := media.StreamArgs(media.StreamSpec{
		InputPath:   item.Path,
		SkipOffset:  item.SkipOffset,
		Tracks:      item.Tracks,
		Width:       t.profile.Width,
		Height:      t.profile.Height,
		Watermark:   t.profile.Watermark,
		Destination: t.profile.Destination,
	})

	t.logger.Info().
		Str("entry", item.EntryID).
		Str("title", item.Title).
		Str("path", item.Path).
		Dur("skip_offset", item.SkipOffset).
		Msg("playing")

	cmd := exec.Command(t.profile.FFmpegBin, args...)

	t.mu.Lock()
	if t.stopped() {
		t.mu.Unlock()
		return
	}
	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		t.logger.Error().Err(err).Str("path", item.Path).Msg("failed to start stream process")
		// Emit completion anyway so the control loop keeps advancing.
		ended := time.Now()
		t.events <- playbackEvent{EntryID: item.EntryID, EndedAt: &ended}
		return
	}
	t.proc = cmd
	t.mu.Unlock()

	err := cmd.Wait()

	t.mu.Lock()
	t.proc = nil
	t.mu.Unlock()

	if t.stopped() {
		return
	}

	if err != nil {
		// A failed stream still counts as completed; the grid must keep
		// moving. The exit error is surfaced in the log only.
		t.logger.Error().Err(err).Str("entry", item.EntryID).Msg("stream process exited with error")
	}

	ended := time.Now()
	t.events <- playbackEvent{EntryID: item.EntryID, EndedAt: &ended}
	telemetry.PlaybacksCompleted.Inc()
}

// stop flips the stop flag and terminates any in-flight child process.
// Termination is cooperative: SIGTERM, no forced kill of a healthy
// process.
func (t *playbackTask) stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.proc != nil && t.proc.Process != nil {
		if err := t.proc.Process.Signal(syscall.SIGTERM); err != nil {
			t.logger.Warn().Err(err).Msg("failed to signal stream process")
		}
	}
}

func (t *playbackTask) stopped() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

// sleepUntil blocks until the deadline or stop, reporting false on stop.
func (t *playbackTask) sleepUntil(deadline time.Time) bool {
	d := time.Until(deadline)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.stopCh:
		return false
	}
}
