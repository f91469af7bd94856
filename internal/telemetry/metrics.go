/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScheduleEntriesBuilt counts entries written by the builder, by tag.
	ScheduleEntriesBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hugin_schedule_entries_built_total",
		Help: "Schedule entries created by the builder.",
	}, []string{"tag"})

	// BuildsRefused counts builds rejected because the day was covered.
	BuildsRefused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hugin_schedule_builds_refused_total",
		Help: "Schedule builds refused because entries already cover the day.",
	})

	// PlaybacksStarted counts items handed to the stream process.
	PlaybacksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hugin_playbacks_started_total",
		Help: "Playback items started.",
	})

	// PlaybacksCompleted counts items whose stream process exited.
	PlaybacksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hugin_playbacks_completed_total",
		Help: "Playback items completed.",
	})

	// DriftAnomalies counts dequeues more than an hour ahead of schedule.
	DriftAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hugin_playout_drift_anomalies_total",
		Help: "Playback items dequeued more than an hour before their scheduled start.",
	})

	// LastDriftSeconds reports the most recent planned-vs-actual end delta.
	LastDriftSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hugin_playout_last_drift_seconds",
		Help: "Delta between the last completed entry's actual and planned end.",
	})

	// EntriesShifted counts entries moved by the drift corrector.
	EntriesShifted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hugin_schedule_entries_shifted_total",
		Help: "Future entries shifted by the drift corrector.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
