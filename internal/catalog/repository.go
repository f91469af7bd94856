/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/models"
)

// ErrNoEpisodes indicates a show carries no episodes at all.
var ErrNoEpisodes = errors.New("show has no episodes")

// Repository is the catalog query surface consumed by the schedule
// builder: enabled shows/movies, per-show rotation state, and aggregate
// durations.
type Repository struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New constructs a catalog repository.
func New(db *gorm.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// WithTx returns a repository bound to the given transaction handle so
// rotation advances commit together with entry inserts.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, logger: r.logger}
}

// EnabledShows lists all enabled shows.
func (r *Repository) EnabledShows(ctx context.Context) ([]models.Show, error) {
	var shows []models.Show
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("title ASC").
		Find(&shows).Error
	return shows, err
}

// EnabledMovies lists all enabled movies.
func (r *Repository) EnabledMovies(ctx context.Context) ([]models.Movie, error) {
	var movies []models.Movie
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("title ASC").
		Find(&movies).Error
	return movies, err
}

// MarathonCandidates lists enabled shows whose total episode duration
// is at least minTotalSeconds.
func (r *Repository) MarathonCandidates(ctx context.Context, minTotalSeconds int) ([]models.Show, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Select("episodes.show_id").
		Joins("JOIN shows ON shows.id = episodes.show_id").
		Where("shows.enabled = ?", true).
		Group("episodes.show_id").
		Having("SUM(episodes.duration) >= ?", minTotalSeconds).
		Pluck("episodes.show_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var shows []models.Show
	err = r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("title ASC").
		Find(&shows).Error
	return shows, err
}

// NextEpisode resolves the show's rotation pointer to the next episode
// in (season, episode) order: the episode after the last played one,
// first of the next season when the season is exhausted, and the very
// first episode when the catalog wraps or no pointer is set.
func (r *Repository) NextEpisode(ctx context.Context, showID string) (*models.Episode, error) {
	var show models.Show
	if err := r.db.WithContext(ctx).First(&show, "id = ?", showID).Error; err != nil {
		return nil, fmt.Errorf("load show: %w", err)
	}

	if show.LastPlayedEpisodeID == nil {
		return r.firstEpisode(ctx, showID)
	}

	var last models.Episode
	err := r.db.WithContext(ctx).First(&last, "id = ?", *show.LastPlayedEpisodeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Pointer refers to a removed episode; restart the rotation.
		return r.firstEpisode(ctx, showID)
	}
	if err != nil {
		return nil, fmt.Errorf("load last played episode: %w", err)
	}

	return r.NextEpisodeAfter(ctx, showID, last.SeasonNumber, last.EpisodeNumber)
}

// NextEpisodeAfter returns the episode following (season, episode) in
// rotation order, wrapping to the first episode after the last.
func (r *Repository) NextEpisodeAfter(ctx context.Context, showID string, season, episode int) (*models.Episode, error) {
	var next models.Episode
	err := r.db.WithContext(ctx).
		Where("show_id = ? AND season_number = ? AND episode_number > ?", showID, season, episode).
		Order("episode_number ASC").
		First(&next).Error
	if err == nil {
		return &next, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("show_id = ? AND season_number > ?", showID, season).
		Order("season_number ASC, episode_number ASC").
		First(&next).Error
	if err == nil {
		return &next, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return r.firstEpisode(ctx, showID)
}

// AdvanceRotation commits the rotation pointer to the given episode.
func (r *Repository) AdvanceRotation(ctx context.Context, showID, episodeID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Show{}).
		Where("id = ?", showID).
		Update("last_played_episode_id", episodeID).Error
}

func (r *Repository) firstEpisode(ctx context.Context, showID string) (*models.Episode, error) {
	var ep models.Episode
	err := r.db.WithContext(ctx).
		Where("show_id = ?", showID).
		Order("season_number ASC, episode_number ASC").
		First(&ep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoEpisodes
	}
	if err != nil {
		return nil, err
	}
	return &ep, nil
}
