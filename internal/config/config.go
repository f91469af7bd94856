/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	DBBackend   DatabaseBackend
	DBDSN       string

	// Channel identity, used by the XMLTV guide export.
	ChannelName string
	ChannelID   string
	ChannelIcon string

	// External tooling.
	FFmpegBin  string
	FFprobeBin string

	// Playout output.
	StreamTarget  string // RTMP (or any ffmpeg-writable) destination
	OutputWidth   int
	OutputHeight  int
	WatermarkPath string // optional overlay image
	AudioLanguage string // preferred audio track language tag

	// Schedule building.
	MarathonChance       float64 // 0..1 probability of reserving a marathon window per build
	MovieChance          float64 // 0..1 probability of placing one movie per build
	IntermissionInterval int     // minutes between intermissions; <= 0 disables them
	RetentionDays        int     // purge horizon for old schedule entries

	// Intermission materialization.
	IntermissionResourceDir string // background.mp4, fonts/
	IntermissionOutputDir   string // rendered intermission videos

	MetricsBind string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("HUGIN_ENV", "development"),
		DBBackend:   DatabaseBackend(getEnv("HUGIN_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("HUGIN_DB_DSN", ""),

		ChannelName: getEnv("HUGIN_CHANNEL_NAME", "Hugin TV"),
		ChannelID:   getEnv("HUGIN_CHANNEL_ID", "1"),
		ChannelIcon: getEnv("HUGIN_CHANNEL_ICON", ""),

		FFmpegBin:  getEnv("HUGIN_FFMPEG_BIN", "ffmpeg"),
		FFprobeBin: getEnv("HUGIN_FFPROBE_BIN", "ffprobe"),

		StreamTarget:  getEnv("HUGIN_STREAM_TARGET", "rtmp://localhost/live/stream"),
		OutputWidth:   getEnvInt("HUGIN_OUTPUT_WIDTH", 1920),
		OutputHeight:  getEnvInt("HUGIN_OUTPUT_HEIGHT", 1080),
		WatermarkPath: getEnv("HUGIN_WATERMARK_PATH", ""),
		AudioLanguage: getEnv("HUGIN_AUDIO_LANGUAGE", "eng"),

		MarathonChance:       getEnvFloat("HUGIN_MARATHON_CHANCE", 0.15),
		MovieChance:          getEnvFloat("HUGIN_MOVIE_CHANCE", 0.2),
		IntermissionInterval: getEnvInt("HUGIN_INTERMISSION_INTERVAL_MINUTES", 120),
		RetentionDays:        getEnvInt("HUGIN_RETENTION_DAYS", 30),

		IntermissionResourceDir: getEnv("HUGIN_INTERMISSION_RESOURCE_DIR", "./resources/intermission"),
		IntermissionOutputDir:   getEnv("HUGIN_INTERMISSION_OUTPUT_DIR", "./intermissions"),

		MetricsBind: getEnv("HUGIN_METRICS_BIND", "127.0.0.1:9000"),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("HUGIN_DB_DSN must be provided")
	}

	if cfg.MarathonChance < 0 || cfg.MarathonChance > 1 {
		return nil, fmt.Errorf("HUGIN_MARATHON_CHANCE must be within [0,1], got %v", cfg.MarathonChance)
	}

	if cfg.MovieChance < 0 || cfg.MovieChance > 1 {
		return nil, fmt.Errorf("HUGIN_MOVIE_CHANCE must be within [0,1], got %v", cfg.MovieChance)
	}

	if cfg.OutputWidth <= 0 || cfg.OutputHeight <= 0 {
		return nil, fmt.Errorf("output dimensions must be positive, got %dx%d", cfg.OutputWidth, cfg.OutputHeight)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return def
}
