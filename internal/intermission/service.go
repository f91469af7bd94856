/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package intermission

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hugin_tv/internal/models"
	"github.com/friendsincode/hugin_tv/internal/schedule"
)

// An intermission board lists this many upcoming programmes; entries
// with fewer in front of them are left for a later run.
const boardItems = 4

// Service materializes pending INTERMISSION entries by rendering a
// coming-up board over a background loop, and removes expired
// intermission files. Voiceover generation stays external; the playout
// engine simply skips entries this service has not reached yet.
type Service struct {
	store       *schedule.Store
	ffmpegBin   string
	resourceDir string
	outputDir   string
	logger      zerolog.Logger
}

// New constructs an intermission service.
func New(store *schedule.Store, ffmpegBin, resourceDir, outputDir string, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		ffmpegBin:   ffmpegBin,
		resourceDir: resourceDir,
		outputDir:   outputDir,
		logger:      logger.With().Str("component", "intermission").Logger(),
	}
}

// GeneratePending renders videos for all future intermission entries
// that still lack a path. Returns the number materialized.
func (s *Service) GeneratePending(ctx context.Context) (int, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	pending, err := s.store.PendingIntermissions(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("load pending intermissions: %w", err)
	}
	s.logger.Info().Int("pending", len(pending)).Msg("intermissions to generate")

	generated := 0
	for _, entry := range pending {
		upcoming, err := s.store.UpcomingProgramming(ctx, entry.EndTime, boardItems)
		if err != nil {
			return generated, err
		}
		if len(upcoming) < boardItems {
			s.logger.Debug().Str("entry", entry.ID).Msg("not enough future programming for board yet")
			continue
		}

		outPath := filepath.Join(s.outputDir, entry.ID+".mp4")
		if err := s.render(ctx, upcoming, outPath); err != nil {
			s.logger.Error().Err(err).Str("entry", entry.ID).Msg("failed to render intermission")
			continue
		}

		if err := s.store.SetPath(ctx, entry.ID, &outPath); err != nil {
			return generated, fmt.Errorf("update intermission path: %w", err)
		}
		s.logger.Info().Str("entry", entry.ID).Str("path", outPath).Msg("generated intermission")
		generated++
	}
	return generated, nil
}

// CleanupOld deletes video files of intermissions that already aired
// and clears their paths. Returns the number removed.
func (s *Service) CleanupOld(ctx context.Context) (int, error) {
	expired, err := s.store.ExpiredIntermissions(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("load expired intermissions: %w", err)
	}
	s.logger.Info().Int("expired", len(expired)).Msg("intermission videos to remove")

	removed := 0
	for _, entry := range expired {
		if entry.Path != nil {
			if err := os.Remove(*entry.Path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn().Err(err).Str("path", *entry.Path).Msg("failed to remove intermission file")
			}
		}
		if err := s.store.SetPath(ctx, entry.ID, nil); err != nil {
			return removed, fmt.Errorf("clear intermission path: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (s *Service) render(ctx context.Context, upcoming []models.ScheduleEntry, outPath string) error {
	background := filepath.Join(s.resourceDir, "background.mp4")
	filter := boardFilter(upcoming, s.resourceDir)

	args := []string{
		"-i", background,
		"-vf", filter,
		"-t", "180",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", "30000/1001",
		"-c:a", "aac",
		"-ar", "44100",
		"-b:a", "256k",
		"-ac", "1",
		"-y",
		outPath,
	}

	cmd := exec.CommandContext(ctx, s.ffmpegBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("render intermission: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// boardFilter builds the drawtext chain listing upcoming programmes:
// start time in bold, title below, season/episode line when present.
func boardFilter(upcoming []models.ScheduleEntry, resourceDir string) string {
	font := filepath.Join(resourceDir, "fonts", "SairaCondensed-Regular.ttf")
	fontBold := filepath.Join(resourceDir, "fonts", "SairaCondensed-SemiBold.ttf")

	var b strings.Builder
	xPos := 600
	yPos := 150
	for _, entry := range upcoming {
		startTime := escapeDrawText(entry.StartTime.Format("3:04"))
		line1, line2 := splitTitle(entry.Title)

		if b.Len() > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "drawtext=fontfile=%s:text=%s:fontsize=72:fontcolor=white:x=%d:y=%d,",
			fontBold, startTime, xPos, yPos)

		yPos += 63
		fmt.Fprintf(&b, "drawtext=fontfile=%s:text=%s:fontsize=56:fontcolor=white:x=%d:y=%d",
			font, escapeDrawText(line1), xPos, yPos)

		if line2 != "" {
			yPos += 58
			fmt.Fprintf(&b, ",drawtext=fontfile=%s:text=%s:fontsize=38:fontcolor=white:x=%d:y=%d",
				font, escapeDrawText(line2), xPos, yPos)
		}

		yPos += 100
	}
	return b.String()
}

// splitTitle separates a synthesized "<show> S<n> E<m>" title into the
// show name and a "Season n Episode m" line; anything else stays whole.
func splitTitle(title string) (string, string) {
	trimmed := strings.TrimSpace(title)
	idx := strings.LastIndex(trimmed, " S")
	if idx <= 0 {
		return trimmed, ""
	}

	var season, episode int
	if _, err := fmt.Sscanf(trimmed[idx:], " S%d E%d", &season, &episode); err != nil {
		return trimmed, ""
	}

	name := strings.TrimSpace(trimmed[:idx])
	name = strings.TrimSuffix(name, " Marathon!")
	return name, fmt.Sprintf("Season %d Episode %d", season, episode)
}

// escapeDrawText escapes characters the drawtext filter treats as
// syntax.
func escapeDrawText(t string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`"`, `\"`,
		`%`, `\%`,
		`:`, `\:`,
		`,`, `\,`,
	)
	return replacer.Replace(t)
}
