/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Show is a series in the catalog. LastPlayedEpisodeID is the rotation
// pointer: the builder advances it monotonically through
// (season, episode) order, wrapping after the final episode.
type Show struct {
	ID                  string `gorm:"type:uuid;primaryKey"`
	Title               string `gorm:"index"`
	Description         string `gorm:"type:text"`
	Path                string
	Enabled             bool    `gorm:"index"`
	LastPlayedEpisodeID *string `gorm:"type:uuid"`
	Thumbnail           string
	ThumbnailWidth      int
	ThumbnailHeight     int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Episode belongs to a show. Duration is in seconds.
type Episode struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	ShowID        string `gorm:"type:uuid;index"`
	SeasonNumber  int    `gorm:"index:idx_episode_order"`
	EpisodeNumber int    `gorm:"index:idx_episode_order"`
	Duration      int
	Path          string
	Description   string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Movie is a standalone catalog item. Duration is in seconds.
type Movie struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Title           string `gorm:"index"`
	Description     string `gorm:"type:text"`
	Duration        int
	Path            string
	Enabled         bool `gorm:"index"`
	Thumbnail       string
	ThumbnailWidth  int
	ThumbnailHeight int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EntryTag classifies a schedule entry.
type EntryTag string

const (
	TagTVEpisode    EntryTag = "TV_EPISODE"
	TagTVMarathon   EntryTag = "TV_MARATHON"
	TagMovie        EntryTag = "MOVIE"
	TagIntermission EntryTag = "INTERMISSION"
)

// ScheduleEntry is one slot in the playout grid. Path is nil only for
// INTERMISSION entries whose video has not been materialized yet; the
// playout engine skips nil-path entries. Actual timing fields stay nil
// until playback is observed.
type ScheduleEntry struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	StartTime       time.Time `gorm:"index"`
	EndTime         time.Time `gorm:"index"`
	Tag             EntryTag  `gorm:"type:varchar(16);index"`
	IsMarathon      bool
	Title           string
	Description     string `gorm:"type:text"`
	Path            *string
	Thumbnail       string
	ThumbnailWidth  int
	ThumbnailHeight int
	ActualStartTime *time.Time
	ActualEndTime   *time.Time
	Completed       bool `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// All returns every model for migration.
func All() []any {
	return []any{
		&Show{},
		&Episode{},
		&Movie{},
		&ScheduleEntry{},
	}
}
