/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/hugin_tv/internal/catalog"
	"github.com/friendsincode/hugin_tv/internal/db"
	"github.com/friendsincode/hugin_tv/internal/schedule"
)

// Schedule flags
var (
	scheduleBuildDate   string
	scheduleBuildDryRun bool
	scheduleBuildSeed   int64
	schedulePurgeDays   int
	schedulePurgeDryRun bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the channel schedule",
}

var scheduleBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a full day of programming",
	Long:  "Fill a broadcast day with shows, movies, marathons and intermissions, appending after the latest existing entry.",
	RunE:  runScheduleBuild,
}

var scheduleAdjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Shift future entries to absorb playback drift",
	RunE:  runScheduleAdjust,
}

var schedulePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete schedule entries past the retention window",
	RunE:  runSchedulePurge,
}

func init() {
	scheduleBuildCmd.Flags().StringVar(&scheduleBuildDate, "date", "", "day to build, YYYY-MM-DD (default: tomorrow)")
	scheduleBuildCmd.Flags().BoolVar(&scheduleBuildDryRun, "dry-run", false, "log the plan without writing entries")
	scheduleBuildCmd.Flags().Int64Var(&scheduleBuildSeed, "seed", 0, "random seed (0 = time-based)")

	schedulePurgeCmd.Flags().IntVar(&schedulePurgeDays, "days", 0, "retention in days (default: configured retention)")
	schedulePurgeCmd.Flags().BoolVar(&schedulePurgeDryRun, "dry-run", false, "count entries without deleting")

	scheduleCmd.AddCommand(scheduleBuildCmd)
	scheduleCmd.AddCommand(scheduleAdjustCmd)
	scheduleCmd.AddCommand(schedulePurgeCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleBuild(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	day := time.Now().AddDate(0, 0, 1)
	if scheduleBuildDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", scheduleBuildDate, time.Local)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
		day = parsed
	}

	var rng *rand.Rand
	if scheduleBuildSeed != 0 {
		rng = rand.New(rand.NewSource(scheduleBuildSeed))
	}

	conn, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(conn)

	builder := schedule.NewBuilder(conn, catalog.New(conn, logger), schedule.BuilderConfig{
		MarathonChance:       cfg.MarathonChance,
		MovieChance:          cfg.MovieChance,
		IntermissionInterval: time.Duration(cfg.IntermissionInterval) * time.Minute,
	}, rng, logger)

	count, err := builder.BuildDay(cmd.Context(), day, scheduleBuildDryRun)
	if err != nil {
		return fmt.Errorf("build schedule: %w", err)
	}

	logger.Info().
		Str("day", day.Format("2006-01-02")).
		Int("entries", count).
		Bool("dry_run", scheduleBuildDryRun).
		Msg("schedule built")
	return nil
}

func runScheduleAdjust(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	conn, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(conn)

	shifted, err := schedule.NewCorrector(conn, logger).AdjustFutureTimes(cmd.Context())
	if err != nil {
		return fmt.Errorf("adjust schedule: %w", err)
	}

	logger.Info().Int("shifted", shifted).Msg("schedule adjusted")
	return nil
}

func runSchedulePurge(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	days := cfg.RetentionDays
	if schedulePurgeDays > 0 {
		days = schedulePurgeDays
	}

	conn, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(conn)

	store := schedule.NewStore(conn, logger)
	affected, err := store.PurgeOlderThan(cmd.Context(), days, schedulePurgeDryRun)
	if err != nil {
		return fmt.Errorf("purge schedule: %w", err)
	}

	if schedulePurgeDryRun {
		logger.Info().Int64("would_delete", affected).Int("days", days).Msg("purge dry run")
	} else {
		logger.Info().Int64("deleted", affected).Int("days", days).Msg("schedule purged")
	}
	return nil
}
