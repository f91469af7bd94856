/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/models"
)

// Store wraps schedule entry persistence. It is the single shared
// resource between the builder, the drift corrector, and the playout
// engine; every write happens in its own transaction.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore constructs a schedule store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "schedule_store").Logger(),
	}
}

// WithTx returns a store bound to the given transaction handle.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, logger: s.logger}
}

// Insert persists a new entry, assigning an id when absent.
func (s *Store) Insert(ctx context.Context, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// LatestEntry returns the entry with the latest end time, or nil when
// the schedule is empty.
func (s *Store) LatestEntry(ctx context.Context) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Order("end_time DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// EntryCovering returns the playable entry whose planned window
// contains the given instant, or nil.
func (s *Store) EntryCovering(ctx context.Context, at time.Time) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Where("start_time <= ? AND end_time > ?", at, at).
		Where("path IS NOT NULL").
		Order("start_time ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// NextPlayable returns the first entry starting strictly after the
// given instant that has a materialized path, or nil. Entries still
// waiting on async media generation are skipped.
func (s *Store) NextPlayable(ctx context.Context, after time.Time) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Where("start_time > ?", after).
		Where("path IS NOT NULL").
		Order("start_time ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// NextPlayableFrom behaves like NextPlayable with an inclusive bound.
func (s *Store) NextPlayableFrom(ctx context.Context, from time.Time) (*models.ScheduleEntry, error) {
	return s.NextPlayable(ctx, from.Add(-time.Nanosecond))
}

// LastCompleted returns the most recently completed entry with a known
// actual end time, or nil.
func (s *Store) LastCompleted(ctx context.Context) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Where("completed = ?", true).
		Where("actual_end_time IS NOT NULL").
		Order("end_time DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateTimes rewrites an entry's planned window.
func (s *Store) UpdateTimes(ctx context.Context, id string, start, end time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.ScheduleEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{"start_time": start, "end_time": end}).Error
}

// MarkStarted records the actual start of playback.
func (s *Store) MarkStarted(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.ScheduleEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{"actual_start_time": at, "completed": false}).Error
}

// MarkCompleted records the actual end of playback.
func (s *Store) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.ScheduleEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{"actual_end_time": at, "completed": true}).Error
}

// SetPath updates an entry's media path; nil clears it.
func (s *Store) SetPath(ctx context.Context, id string, path *string) error {
	return s.db.WithContext(ctx).
		Model(&models.ScheduleEntry{}).
		Where("id = ?", id).
		Update("path", path).Error
}

// PendingIntermissions lists future intermission entries whose video
// has not been materialized yet.
func (s *Store) PendingIntermissions(ctx context.Context, after time.Time) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Where("start_time > ?", after).
		Where("tag = ?", models.TagIntermission).
		Where("path IS NULL").
		Order("start_time ASC").
		Find(&entries).Error
	return entries, err
}

// ExpiredIntermissions lists intermission entries that ended before the
// given instant and still hold a materialized path.
func (s *Store) ExpiredIntermissions(ctx context.Context, before time.Time) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Where("end_time < ?", before).
		Where("tag = ?", models.TagIntermission).
		Where("path IS NOT NULL").
		Order("end_time ASC").
		Find(&entries).Error
	return entries, err
}

// UpcomingProgramming lists up to limit non-intermission entries
// starting at or after the given instant.
func (s *Store) UpcomingProgramming(ctx context.Context, from time.Time, limit int) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Where("start_time >= ?", from).
		Where("tag <> ?", models.TagIntermission).
		Order("start_time ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// EntriesFrom lists all entries starting at or after the given instant.
func (s *Store) EntriesFrom(ctx context.Context, from time.Time) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	err := s.db.WithContext(ctx).
		Where("start_time >= ?", from).
		Order("start_time ASC").
		Find(&entries).Error
	return entries, err
}

// PurgeOlderThan deletes entries whose end time precedes the retention
// horizon. With dryRun the matching rows are only counted.
func (s *Store) PurgeOlderThan(ctx context.Context, retentionDays int, dryRun bool) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	if dryRun {
		var count int64
		err := s.db.WithContext(ctx).
			Model(&models.ScheduleEntry{}).
			Where("end_time < ?", cutoff).
			Count(&count).Error
		return count, err
	}

	result := s.db.WithContext(ctx).
		Where("end_time < ?", cutoff).
		Delete(&models.ScheduleEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.logger.Info().Int64("deleted", result.RowsAffected).Msg("purged old schedule entries")
	}
	return result.RowsAffected, nil
}
