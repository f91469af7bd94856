/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/catalog"
	"github.com/friendsincode/hugin_tv/internal/models"
	"github.com/friendsincode/hugin_tv/internal/telemetry"
)

// ErrAlreadyScheduled indicates entries already cover the requested day.
var ErrAlreadyScheduled = errors.New("schedule already covers the requested day")

// ErrNoShows indicates the catalog has no enabled shows to draw from.
var ErrNoShows = errors.New("no enabled shows in catalog")

const (
	intermissionDuration = 180 * time.Second

	// A show qualifies for a marathon with at least 20h of content.
	marathonMinTotalSeconds = 72000
	marathonMinWindow       = 8 * time.Hour
	marathonMaxWindow       = 12 * time.Hour

	repeatChance = 0.4
	// Runs of 4 are only allowed for episodes at or under this length.
	longEpisodeCutoff = 1800
)

// BuilderConfig carries the tunable build parameters.
type BuilderConfig struct {
	MarathonChance       float64
	MovieChance          float64
	IntermissionInterval time.Duration // <= 0 disables intermissions
}

// Builder fills one day of the grid from the catalog using randomized
// greedy placement under the rotation, marathon, movie, and
// intermission constraints.
type Builder struct {
	db      *gorm.DB
	store   *Store
	catalog *catalog.Repository
	cfg     BuilderConfig
	rng     *rand.Rand
	logger  zerolog.Logger
}

// NewBuilder constructs a schedule builder. A nil rng gets a time
// seeded source; tests pass a fixed seed for reproducible grids.
func NewBuilder(db *gorm.DB, cat *catalog.Repository, cfg BuilderConfig, rng *rand.Rand, logger zerolog.Logger) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{
		db:      db,
		store:   NewStore(db, logger),
		catalog: cat,
		cfg:     cfg,
		rng:     rng,
		logger:  logger.With().Str("component", "schedule_builder").Logger(),
	}
}

// rotationState tracks in-build rotation progress per show so that
// subsequent picks within the same run observe it, and so dry runs can
// simulate progress without committing pointers.
type rotationState struct {
	season  int
	episode int
}

// BuildDay plans entries from the latest existing entry's end time
// (midnight of day when the schedule is empty) until an entry's end
// crosses into the day after day, so resuming never leaves a hole
// behind the new coverage. Returns the number of entries placed.
// Refuses with ErrAlreadyScheduled when coverage already extends past
// the day, unless dryRun is set; dry runs never write.
func (b *Builder) BuildDay(ctx context.Context, day time.Time, dryRun bool) (int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	latest, err := b.store.LatestEntry(ctx)
	if err != nil {
		return 0, fmt.Errorf("load latest entry: %w", err)
	}

	cursor := dayStart
	if latest != nil {
		if !latest.EndTime.Before(dayEnd) && !dryRun {
			telemetry.BuildsRefused.Inc()
			return 0, ErrAlreadyScheduled
		}
		// Resume from the existing coverage even when it ends before
		// day begins; the grid stays contiguous across builds.
		cursor = latest.EndTime
	}

	buildStart := cursor
	budget := dayEnd.Sub(buildStart)
	if budget <= 0 {
		return 0, nil
	}

	b.logger.Info().
		Time("from", buildStart).
		Time("until", dayEnd).
		Bool("dry_run", dryRun).
		Msg("building schedule")

	shows, err := b.catalog.EnabledShows(ctx)
	if err != nil {
		return 0, fmt.Errorf("load shows: %w", err)
	}
	if len(shows) == 0 {
		return 0, ErrNoShows
	}

	marathonShow, marathonStart, marathonDur, err := b.reserveMarathon(ctx, budget)
	if err != nil {
		return 0, err
	}

	movie, movieStart, moviePending, err := b.reserveMovie(ctx, budget, marathonShow != nil, marathonStart, marathonDur)
	if err != nil {
		return 0, err
	}

	var (
		rotation         = make(map[string]rotationState)
		emptyShows       = make(map[string]bool)
		currentShow      *models.Show
		prevShowID       string
		repeatCount      int
		repeatTarget     int
		inMarathon       bool
		marathonEntered  bool
		marathonTimer    time.Duration
		lastIntermission time.Duration
		placed           int
	)

	elapsed := func() time.Duration { return cursor.Sub(buildStart) }

	for cursor.Before(dayEnd) {
		if err := ctx.Err(); err != nil {
			return placed, err
		}

		if b.cfg.IntermissionInterval > 0 && elapsed()-lastIntermission >= b.cfg.IntermissionInterval {
			entry := &models.ScheduleEntry{
				StartTime: cursor,
				EndTime:   cursor.Add(intermissionDuration),
				Tag:       models.TagIntermission,
				Title:     "Intermission",
			}
			if err := b.place(ctx, entry, nil, dryRun); err != nil {
				return placed, err
			}
			cursor = entry.EndTime
			lastIntermission = elapsed()
			placed++
			continue
		}

		if currentShow == nil || (repeatCount >= repeatTarget && !inMarathon) {
			repeatCount, repeatTarget = 0, 0
			if inMarathon {
				currentShow = marathonShow
			} else {
				exclude := map[string]bool{prevShowID: true}
				if marathonShow != nil {
					exclude[marathonShow.ID] = true
				}
				for id := range emptyShows {
					exclude[id] = true
				}
				pick := catalog.PickShow(b.rng, shows, exclude)
				if pick == nil {
					// Tiny catalogs: allow an immediate repeat of the
					// previous show rather than stalling the build.
					delete(exclude, prevShowID)
					pick = catalog.PickShow(b.rng, shows, exclude)
				}
				if pick == nil {
					return placed, ErrNoShows
				}
				currentShow = pick
			}
		} else if inMarathon {
			currentShow = marathonShow
		}

		ep, err := b.nextEpisode(ctx, currentShow.ID, rotation)
		if errors.Is(err, catalog.ErrNoEpisodes) {
			emptyShows[currentShow.ID] = true
			currentShow = nil
			repeatCount, repeatTarget = 0, 0
			continue
		}
		if err != nil {
			return placed, fmt.Errorf("next episode for %s: %w", currentShow.Title, err)
		}
		epDur := time.Duration(ep.Duration) * time.Second

		// Entering the reserved marathon window switches all picks to
		// the marathon show until its duration is consumed.
		if marathonShow != nil && !inMarathon && !marathonEntered && elapsed()+epDur > marathonStart {
			inMarathon = true
			marathonEntered = true
			currentShow = marathonShow
			repeatCount, repeatTarget = 0, 0
			continue
		}

		if inMarathon && marathonTimer+epDur > marathonDur {
			inMarathon = false
			currentShow = nil
			repeatCount, repeatTarget = 0, 0
			continue
		}

		// A pending movie whose reserved offset would be crossed by
		// this episode goes in first; rotation does not advance.
		if moviePending && !inMarathon && elapsed()+epDur > movieStart {
			entry := &models.ScheduleEntry{
				StartTime:       cursor,
				EndTime:         cursor.Add(time.Duration(movie.Duration) * time.Second),
				Tag:             models.TagMovie,
				Title:           movie.Title,
				Description:     movie.Description,
				Path:            &movie.Path,
				Thumbnail:       movie.Thumbnail,
				ThumbnailWidth:  movie.ThumbnailWidth,
				ThumbnailHeight: movie.ThumbnailHeight,
			}
			if err := b.place(ctx, entry, nil, dryRun); err != nil {
				return placed, err
			}
			cursor = entry.EndTime
			moviePending = false
			placed++
			continue
		}

		if repeatCount >= repeatTarget && !inMarathon {
			repeatTarget = decideRepeats(b.rng, ep.Duration)
		}

		title := fmt.Sprintf("%s S%d E%d", currentShow.Title, ep.SeasonNumber, ep.EpisodeNumber)
		tag := models.TagTVEpisode
		if inMarathon {
			title = fmt.Sprintf("%s Marathon! S%d E%d", currentShow.Title, ep.SeasonNumber, ep.EpisodeNumber)
			tag = models.TagTVMarathon
		}

		entry := &models.ScheduleEntry{
			StartTime:       cursor,
			EndTime:         cursor.Add(epDur),
			Tag:             tag,
			IsMarathon:      inMarathon,
			Title:           title,
			Description:     ep.Description,
			Path:            &ep.Path,
			Thumbnail:       currentShow.Thumbnail,
			ThumbnailWidth:  currentShow.ThumbnailWidth,
			ThumbnailHeight: currentShow.ThumbnailHeight,
		}
		if err := b.place(ctx, entry, ep, dryRun); err != nil {
			return placed, err
		}

		rotation[currentShow.ID] = rotationState{season: ep.SeasonNumber, episode: ep.EpisodeNumber}
		prevShowID = currentShow.ID
		repeatCount++
		if inMarathon {
			marathonTimer += epDur
		}
		cursor = entry.EndTime
		placed++
	}

	if moviePending {
		b.logger.Info().Str("movie", movie.Title).Msg("no slot fit the reserved movie, skipped")
	}

	b.logger.Info().Int("entries", placed).Time("grid_end", cursor).Msg("schedule build finished")
	return placed, nil
}

// reserveMarathon rolls the marathon chance and reserves a contiguous
// window of 8-12h (bounded by the remaining day) at a random offset.
func (b *Builder) reserveMarathon(ctx context.Context, budget time.Duration) (*models.Show, time.Duration, time.Duration, error) {
	if b.rng.Float64() >= b.cfg.MarathonChance {
		return nil, 0, 0, nil
	}

	candidates, err := b.catalog.MarathonCandidates(ctx, marathonMinTotalSeconds)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("load marathon candidates: %w", err)
	}
	show := catalog.PickShow(b.rng, candidates, nil)
	if show == nil {
		return nil, 0, 0, nil
	}

	dur := marathonMinWindow + randDuration(b.rng, marathonMaxWindow-marathonMinWindow)
	if dur > budget {
		dur = budget
	}
	start := randDuration(b.rng, budget-dur)

	b.logger.Info().
		Str("show", show.Title).
		Dur("offset", start).
		Dur("window", dur).
		Msg("reserved marathon window")
	return show, start, dur, nil
}

// reserveMovie rolls the movie chance and picks a start offset that
// fits around the marathon reservation, preferring whichever side has
// room. Returns pending=false when nothing fits.
func (b *Builder) reserveMovie(ctx context.Context, budget time.Duration, hasMarathon bool, marathonStart, marathonDur time.Duration) (*models.Movie, time.Duration, bool, error) {
	if b.rng.Float64() >= b.cfg.MovieChance {
		return nil, 0, false, nil
	}

	movies, err := b.catalog.EnabledMovies(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("load movies: %w", err)
	}
	movie := catalog.PickMovie(b.rng, movies)
	if movie == nil {
		return nil, 0, false, nil
	}
	movieDur := time.Duration(movie.Duration) * time.Second

	if !hasMarathon {
		if movieDur > budget {
			b.logger.Info().Str("movie", movie.Title).Msg("movie longer than remaining day, skipped")
			return nil, 0, false, nil
		}
		return movie, randDuration(b.rng, budget-movieDur), true, nil
	}

	beforeFits := movieDur <= marathonStart
	afterLen := budget - (marathonStart + marathonDur)
	afterFits := movieDur <= afterLen

	switch {
	case beforeFits && afterFits:
		if b.rng.Intn(2) == 0 {
			return movie, randDuration(b.rng, marathonStart-movieDur), true, nil
		}
		return movie, marathonStart + marathonDur + randDuration(b.rng, afterLen-movieDur), true, nil
	case beforeFits:
		return movie, randDuration(b.rng, marathonStart-movieDur), true, nil
	case afterFits:
		return movie, marathonStart + marathonDur + randDuration(b.rng, afterLen-movieDur), true, nil
	default:
		b.logger.Info().Str("movie", movie.Title).Msg("no slot around marathon fits the movie, skipped")
		return nil, 0, false, nil
	}
}

// nextEpisode resolves rotation through the in-build state first so a
// single run (including dry runs) observes its own progress.
func (b *Builder) nextEpisode(ctx context.Context, showID string, rotation map[string]rotationState) (*models.Episode, error) {
	if last, ok := rotation[showID]; ok {
		return b.catalog.NextEpisodeAfter(ctx, showID, last.season, last.episode)
	}
	return b.catalog.NextEpisode(ctx, showID)
}

// place inserts the entry and, for episode entries, commits the show's
// rotation pointer in the same transaction. Dry runs only log.
func (b *Builder) place(ctx context.Context, entry *models.ScheduleEntry, ep *models.Episode, dryRun bool) error {
	if dryRun {
		b.logger.Info().
			Time("start", entry.StartTime).
			Time("end", entry.EndTime).
			Str("tag", string(entry.Tag)).
			Str("title", entry.Title).
			Msg("dry run: would place entry")
		return nil
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := b.store.WithTx(tx).Insert(ctx, entry); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		if ep != nil {
			if err := b.catalog.WithTx(tx).AdvanceRotation(ctx, ep.ShowID, ep.ID); err != nil {
				return fmt.Errorf("advance rotation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	telemetry.ScheduleEntriesBuilt.WithLabelValues(string(entry.Tag)).Inc()
	b.logger.Debug().
		Time("start", entry.StartTime).
		Str("tag", string(entry.Tag)).
		Str("title", entry.Title).
		Msg("placed entry")
	return nil
}

// decideRepeats picks the total plays for a fresh show selection: 0
// (single play) most of the time, otherwise a run of 2, or 4 for
// episodes short enough to repeat that often.
func decideRepeats(rng *rand.Rand, durationSeconds int) int {
	if rng.Float64() >= repeatChance {
		return 0
	}
	if durationSeconds > longEpisodeCutoff {
		return 2
	}
	if rng.Intn(2) == 0 {
		return 2
	}
	return 4
}

// randDuration returns a uniform duration in [0, max]; 0 when max <= 0.
func randDuration(rng *rand.Rand, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max) + 1))
}
