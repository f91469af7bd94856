/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/hugin_tv/internal/db"
	"github.com/friendsincode/hugin_tv/internal/schedule"
)

var xmltvOutput string

var xmltvCmd = &cobra.Command{
	Use:   "xmltv",
	Short: "Export the schedule as an XMLTV guide",
	RunE:  runXMLTV,
}

func init() {
	xmltvCmd.Flags().StringVar(&xmltvOutput, "output", "", "file to write (default: stdout)")
	rootCmd.AddCommand(xmltvCmd)
}

func runXMLTV(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	conn, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(conn)

	exporter := schedule.NewGuideExporter(schedule.NewStore(conn, logger), schedule.ChannelIdentity{
		ID:   cfg.ChannelID,
		Name: cfg.ChannelName,
		Icon: cfg.ChannelIcon,
	}, logger)

	out := os.Stdout
	if xmltvOutput != "" {
		f, err := os.Create(xmltvOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := exporter.Write(cmd.Context(), out); err != nil {
		return fmt.Errorf("write guide: %w", err)
	}
	return nil
}
