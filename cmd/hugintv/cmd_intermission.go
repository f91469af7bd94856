/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/hugin_tv/internal/db"
	"github.com/friendsincode/hugin_tv/internal/intermission"
	"github.com/friendsincode/hugin_tv/internal/schedule"
)

var intermissionCmd = &cobra.Command{
	Use:   "intermission",
	Short: "Manage intermission videos",
}

var intermissionGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render videos for pending intermission entries",
	RunE:  runIntermissionGenerate,
}

var intermissionCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete videos of intermissions that already aired",
	RunE:  runIntermissionCleanup,
}

func init() {
	intermissionCmd.AddCommand(intermissionGenerateCmd)
	intermissionCmd.AddCommand(intermissionCleanupCmd)
	rootCmd.AddCommand(intermissionCmd)
}

func intermissionService() (*intermission.Service, func(), error) {
	conn, err := initDatabase()
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	svc := intermission.New(
		schedule.NewStore(conn, logger),
		cfg.FFmpegBin,
		cfg.IntermissionResourceDir,
		cfg.IntermissionOutputDir,
		logger,
	)
	return svc, func() { db.Close(conn) }, nil
}

func runIntermissionGenerate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	svc, cleanup, err := intermissionService()
	if err != nil {
		return err
	}
	defer cleanup()

	count, err := svc.GeneratePending(cmd.Context())
	if err != nil {
		return fmt.Errorf("generate intermissions: %w", err)
	}
	logger.Info().Int("generated", count).Msg("intermission generation finished")
	return nil
}

func runIntermissionCleanup(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	svc, cleanup, err := intermissionService()
	if err != nil {
		return err
	}
	defer cleanup()

	count, err := svc.CleanupOld(cmd.Context())
	if err != nil {
		return fmt.Errorf("clean up intermissions: %w", err)
	}
	logger.Info().Int("removed", count).Msg("intermission cleanup finished")
	return nil
}
