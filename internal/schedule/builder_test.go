/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/catalog"
	"github.com/friendsincode/hugin_tv/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedShowWithEpisodes(t *testing.T, db *gorm.DB, title string, durations map[[2]int]int) models.Show {
	t.Helper()
	show := models.Show{ID: uuid.NewString(), Title: title, Enabled: true}
	if err := db.Create(&show).Error; err != nil {
		t.Fatalf("create show: %v", err)
	}
	for se, dur := range durations {
		ep := models.Episode{
			ID:            uuid.NewString(),
			ShowID:        show.ID,
			SeasonNumber:  se[0],
			EpisodeNumber: se[1],
			Duration:      dur,
			Path:          "/media/shows/" + title + ".mkv",
		}
		if err := db.Create(&ep).Error; err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}
	return show
}

func newTestBuilder(db *gorm.DB, cfg BuilderConfig, seed int64) *Builder {
	return NewBuilder(db, catalog.New(db, zerolog.Nop()), cfg, rand.New(rand.NewSource(seed)), zerolog.Nop())
}

func TestBuildDay_FillsDayContiguously(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	seedShowWithEpisodes(t, db, "Orbit Diner", map[[2]int]int{{1, 1}: 1800, {1, 2}: 1800})
	seedShowWithEpisodes(t, db, "Night Shift", map[[2]int]int{{1, 1}: 3600})

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{}, 42)

	placed, err := b.BuildDay(ctx, day, false)
	if err != nil {
		t.Fatalf("build day: %v", err)
	}
	if placed == 0 {
		t.Fatal("expected entries to be placed")
	}

	var entries []models.ScheduleEntry
	if err := db.Order("start_time ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != placed {
		t.Fatalf("placed %d but found %d entries", placed, len(entries))
	}

	dayEnd := day.Add(24 * time.Hour)
	if !entries[0].StartTime.Equal(day) {
		t.Fatalf("first entry starts at %v, want %v", entries[0].StartTime, day)
	}
	for i := 1; i < len(entries); i++ {
		if !entries[i].StartTime.Equal(entries[i-1].EndTime) {
			t.Fatalf("gap between entry %d (end %v) and %d (start %v)",
				i-1, entries[i-1].EndTime, i, entries[i].StartTime)
		}
	}
	last := entries[len(entries)-1]
	if last.EndTime.Before(dayEnd) {
		t.Fatalf("schedule ends at %v, before day end %v", last.EndTime, dayEnd)
	}
	if last.StartTime.After(dayEnd) {
		t.Fatalf("last entry starts at %v, after day end %v", last.StartTime, dayEnd)
	}

	// With zero marathon/movie chance and no intermissions, everything
	// is a plain episode with a playable path.
	for _, e := range entries {
		if e.Tag != models.TagTVEpisode {
			t.Fatalf("unexpected tag %s", e.Tag)
		}
		if e.Path == nil || *e.Path == "" {
			t.Fatalf("entry %s has no path", e.Title)
		}
	}
}

func TestBuildDay_RotationAlternates(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	seedShowWithEpisodes(t, db, "Orbit Diner", map[[2]int]int{{1, 1}: 1800, {1, 2}: 1800})

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{}, 7)
	if _, err := b.BuildDay(ctx, day, false); err != nil {
		t.Fatalf("build day: %v", err)
	}

	var entries []models.ScheduleEntry
	if err := db.Order("start_time ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}

	// Single show, two episodes: titles must strictly alternate E1/E2.
	want := []string{"Orbit Diner S1 E1", "Orbit Diner S1 E2"}
	for i, e := range entries {
		if e.Title != want[i%2] {
			t.Fatalf("entry %d: got %q, want %q", i, e.Title, want[i%2])
		}
	}
}

func TestBuildDay_RefusesWhenAlreadyCovered(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	seedShowWithEpisodes(t, db, "Orbit Diner", map[[2]int]int{{1, 1}: 1800})

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{}, 1)

	if _, err := b.BuildDay(ctx, day, false); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.BuildDay(ctx, day, false); !errors.Is(err, ErrAlreadyScheduled) {
		t.Fatalf("expected ErrAlreadyScheduled, got %v", err)
	}

	// Dry runs never refuse; with full coverage there is nothing to plan.
	placed, err := b.BuildDay(ctx, day, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if placed != 0 {
		t.Fatalf("dry run on covered day placed %d entries", placed)
	}
}

func TestBuildDay_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	seedShowWithEpisodes(t, db, "Orbit Diner", map[[2]int]int{{1, 1}: 1800})

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{}, 3)

	placed, err := b.BuildDay(ctx, day, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if placed == 0 {
		t.Fatal("dry run planned nothing")
	}

	var count int64
	if err := db.Model(&models.ScheduleEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("dry run persisted %d entries", count)
	}

	var show models.Show
	if err := db.First(&show).Error; err != nil {
		t.Fatalf("load show: %v", err)
	}
	if show.LastPlayedEpisodeID != nil {
		t.Fatal("dry run advanced the rotation pointer")
	}
}

func TestBuildDay_NoShows(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	b := newTestBuilder(db, BuilderConfig{}, 1)
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if _, err := b.BuildDay(context.Background(), day, false); !errors.Is(err, ErrNoShows) {
		t.Fatalf("expected ErrNoShows, got %v", err)
	}
}

func TestBuildDay_MarathonBlock(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	// 40 half-hour episodes clear the marathon eligibility floor.
	marathonEps := make(map[[2]int]int, 40)
	for i := 1; i <= 40; i++ {
		marathonEps[[2]int{1, i}] = 1800
	}
	seedShowWithEpisodes(t, db, "Deep Space Diner", marathonEps)
	seedShowWithEpisodes(t, db, "Night Shift", map[[2]int]int{{1, 1}: 1800})

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{MarathonChance: 1}, 11)
	if _, err := b.BuildDay(ctx, day, false); err != nil {
		t.Fatalf("build day: %v", err)
	}

	var entries []models.ScheduleEntry
	if err := db.Order("start_time ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}

	first, last := -1, -1
	var marathonLen time.Duration
	for i, e := range entries {
		if e.Tag == models.TagTVMarathon {
			if first == -1 {
				first = i
			}
			last = i
			marathonLen += e.EndTime.Sub(e.StartTime)
			if !e.IsMarathon {
				t.Fatal("marathon entry without IsMarathon")
			}
		}
	}
	if first == -1 {
		t.Fatal("expected a marathon block with chance 1")
	}
	// The block is contiguous: no plain episode inside it.
	for i := first; i <= last; i++ {
		if entries[i].Tag != models.TagTVMarathon {
			t.Fatalf("non-marathon entry %q inside marathon block", entries[i].Title)
		}
	}
	if marathonLen > marathonMaxWindow {
		t.Fatalf("marathon block %v exceeds the maximum window", marathonLen)
	}
}

func seedMovie(t *testing.T, db *gorm.DB, title string, duration int) models.Movie {
	t.Helper()
	movie := models.Movie{
		ID:       uuid.NewString(),
		Title:    title,
		Duration: duration,
		Path:     "/media/movies/" + title + ".mkv",
		Enabled:  true,
	}
	if err := db.Create(&movie).Error; err != nil {
		t.Fatalf("create movie: %v", err)
	}
	return movie
}

func TestBuildDay_MoviePlacement(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	seedShowWithEpisodes(t, db, "Orbit Diner", map[[2]int]int{{1, 1}: 1800, {1, 2}: 1800})
	movie := seedMovie(t, db, "The Long Goodbye", 3600)

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{MovieChance: 1}, 21)
	if _, err := b.BuildDay(ctx, day, false); err != nil {
		t.Fatalf("build day: %v", err)
	}

	var entries []models.ScheduleEntry
	if err := db.Order("start_time ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}

	var movies []models.ScheduleEntry
	for i := 1; i < len(entries); i++ {
		if !entries[i].StartTime.Equal(entries[i-1].EndTime) {
			t.Fatalf("gap before entry %d", i)
		}
	}
	for _, e := range entries {
		if e.Tag == models.TagMovie {
			movies = append(movies, e)
		}
	}
	if len(movies) != 1 {
		t.Fatalf("%d movie entries, want exactly 1", len(movies))
	}
	got := movies[0]
	if got.Title != movie.Title || got.Path == nil || *got.Path != movie.Path {
		t.Fatalf("movie entry mismatch: %+v", got)
	}
	if dur := got.EndTime.Sub(got.StartTime); dur != time.Duration(movie.Duration)*time.Second {
		t.Fatalf("movie duration %v, want 1h", dur)
	}

	// The movie does not consume the show rotation: episode titles still
	// strictly alternate around it.
	want := []string{"Orbit Diner S1 E1", "Orbit Diner S1 E2"}
	episodeIdx := 0
	for _, e := range entries {
		if e.Tag != models.TagTVEpisode {
			continue
		}
		if e.Title != want[episodeIdx%2] {
			t.Fatalf("episode %d: got %q, want %q", episodeIdx, e.Title, want[episodeIdx%2])
		}
		episodeIdx++
	}
}

func TestBuildDay_MovieStaysOutsideMarathon(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	marathonEps := make(map[[2]int]int, 40)
	for i := 1; i <= 40; i++ {
		marathonEps[[2]int{1, i}] = 1800
	}
	seedShowWithEpisodes(t, db, "Deep Space Diner", marathonEps)
	seedShowWithEpisodes(t, db, "Night Shift", map[[2]int]int{{1, 1}: 1800})
	// Short enough that a slot fits on at least one side of any
	// marathon window.
	seedMovie(t, db, "Station Ident", 60)

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{MarathonChance: 1, MovieChance: 1}, 13)
	if _, err := b.BuildDay(ctx, day, false); err != nil {
		t.Fatalf("build day: %v", err)
	}

	var entries []models.ScheduleEntry
	if err := db.Order("start_time ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}

	firstMarathon, lastMarathon, movieIdx := -1, -1, -1
	for i, e := range entries {
		switch e.Tag {
		case models.TagTVMarathon:
			if firstMarathon == -1 {
				firstMarathon = i
			}
			lastMarathon = i
		case models.TagMovie:
			if movieIdx != -1 {
				t.Fatal("more than one movie entry")
			}
			movieIdx = i
		}
	}
	if firstMarathon == -1 {
		t.Fatal("expected a marathon block with chance 1")
	}
	if movieIdx == -1 {
		t.Fatal("expected the movie to be placed")
	}
	if movieIdx > firstMarathon && movieIdx < lastMarathon {
		t.Fatalf("movie at index %d sits inside the marathon block [%d,%d]", movieIdx, firstMarathon, lastMarathon)
	}
}

func TestBuildDay_ResumesFromEarlierCoverage(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	seedShowWithEpisodes(t, db, "Orbit Diner", map[[2]int]int{{1, 1}: 1800})

	// Existing coverage stops two hours before the requested day.
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	priorEnd := day.Add(-2 * time.Hour)
	seedEntry(t, db, priorEnd.Add(-30*time.Minute), priorEnd, nil)

	b := newTestBuilder(db, BuilderConfig{}, 17)
	if _, err := b.BuildDay(ctx, day, false); err != nil {
		t.Fatalf("build day: %v", err)
	}

	var entries []models.ScheduleEntry
	if err := db.Order("start_time ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	// The first new entry abuts the prior coverage instead of leaving a
	// hole up to midnight.
	if !entries[1].StartTime.Equal(priorEnd) {
		t.Fatalf("build resumed at %v, want %v", entries[1].StartTime, priorEnd)
	}
	for i := 2; i < len(entries); i++ {
		if !entries[i].StartTime.Equal(entries[i-1].EndTime) {
			t.Fatalf("gap before entry %d", i)
		}
	}
	if last := entries[len(entries)-1]; last.EndTime.Before(day.Add(24 * time.Hour)) {
		t.Fatalf("coverage ends at %v, before day end", last.EndTime)
	}
}

func TestBuildDay_IntermissionCadence(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	seedShowWithEpisodes(t, db, "Orbit Diner", map[[2]int]int{{1, 1}: 1800, {1, 2}: 1800})

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	b := newTestBuilder(db, BuilderConfig{IntermissionInterval: 2 * time.Hour}, 5)
	if _, err := b.BuildDay(ctx, day, false); err != nil {
		t.Fatalf("build day: %v", err)
	}

	var intermissions []models.ScheduleEntry
	if err := db.Where("tag = ?", models.TagIntermission).Order("start_time ASC").Find(&intermissions).Error; err != nil {
		t.Fatalf("load intermissions: %v", err)
	}
	if len(intermissions) == 0 {
		t.Fatal("expected intermission entries")
	}
	for _, e := range intermissions {
		if e.Path != nil {
			t.Fatal("fresh intermission should have no path yet")
		}
		if got := e.EndTime.Sub(e.StartTime); got != intermissionDuration {
			t.Fatalf("intermission duration %v, want %v", got, intermissionDuration)
		}
	}
	// Cadence: consecutive intermissions are at least the interval apart.
	for i := 1; i < len(intermissions); i++ {
		if gap := intermissions[i].StartTime.Sub(intermissions[i-1].StartTime); gap < 2*time.Hour {
			t.Fatalf("intermissions only %v apart", gap)
		}
	}
}

func TestDecideRepeats(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(99))
	sawZero, sawTwo, sawFour := false, false, false
	for i := 0; i < 2000; i++ {
		switch decideRepeats(rng, 1500) {
		case 0:
			sawZero = true
		case 2:
			sawTwo = true
		case 4:
			sawFour = true
		default:
			t.Fatal("repeats outside {0, 2, 4}")
		}
	}
	if !sawZero || !sawTwo || !sawFour {
		t.Fatalf("short episodes should produce 0, 2 and 4 (got zero=%v two=%v four=%v)", sawZero, sawTwo, sawFour)
	}

	for i := 0; i < 2000; i++ {
		if decideRepeats(rng, 3600) == 4 {
			t.Fatal("long episodes must not run 4 times")
		}
	}
}

func TestRandDuration(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))

	if randDuration(rng, 0) != 0 || randDuration(rng, -time.Hour) != 0 {
		t.Fatal("non-positive max must yield 0")
	}
	for i := 0; i < 1000; i++ {
		d := randDuration(rng, time.Hour)
		if d < 0 || d > time.Hour {
			t.Fatalf("duration %v out of range", d)
		}
	}
}
