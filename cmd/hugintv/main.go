package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/catalog"
	"github.com/friendsincode/hugin_tv/internal/config"
	"github.com/friendsincode/hugin_tv/internal/db"
	"github.com/friendsincode/hugin_tv/internal/events"
	"github.com/friendsincode/hugin_tv/internal/logging"
	"github.com/friendsincode/hugin_tv/internal/playout"
	"github.com/friendsincode/hugin_tv/internal/schedule"
	"github.com/friendsincode/hugin_tv/internal/telemetry"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hugintv",
	Short: "Hugin TV - Linear television channel automation",
	Long:  "Hugin TV schedules and plays out a continuous linear television channel from a library of shows and movies.",
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run the playout engine",
	Long:  "Start the playout engine: follow the schedule and stream entries to the configured destination until interrupted.",
	RunE:  runPlay,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

// initDatabase opens the configured database connection.
func initDatabase() (*gorm.DB, error) {
	return db.Connect(cfg)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	conn, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(conn)

	if err := db.Migrate(conn); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info().Msg("migrations applied")
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("channel", cfg.ChannelName).Msg("Hugin TV starting")

	conn, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(conn)

	if err := db.Migrate(conn); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	bus := events.NewBus()

	sub := bus.Subscribe(events.EventNowPlaying, events.EventPlaybackEnded)
	go logPlaybackEvents(sub)
	defer bus.Unsubscribe(sub)

	if cfg.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		metricsServer := &http.Server{Addr: cfg.MetricsBind, Handler: mux}
		go func() {
			logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer func() {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(timeoutCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown failed")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep tomorrow scheduled while the engine runs.
	go scheduleAhead(ctx, conn, bus)

	engine := playout.NewEngine(conn, cfg, bus, logger)
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("playout engine: %w", err)
	}

	logger.Info().Msg("Hugin TV stopped")
	return nil
}

func logPlaybackEvents(sub events.Subscriber) {
	for ev := range sub {
		logger.Info().
			Str("event", string(ev.Type)).
			Str("entry", ev.EntryID).
			Time("at", ev.At).
			Msg("playback event")
	}
}

// scheduleAhead periodically extends the schedule and corrects drift so
// the engine never runs out of entries overnight.
func scheduleAhead(ctx context.Context, conn *gorm.DB, bus *events.Bus) {
	builder := schedule.NewBuilder(conn, catalog.New(conn, logger), schedule.BuilderConfig{
		MarathonChance:       cfg.MarathonChance,
		MovieChance:          cfg.MovieChance,
		IntermissionInterval: time.Duration(cfg.IntermissionInterval) * time.Minute,
	}, rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	corrector := schedule.NewCorrector(conn, logger)

	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		if _, err := corrector.AdjustFutureTimes(ctx); err != nil {
			logger.Error().Err(err).Msg("drift correction failed")
		}

		for _, day := range []time.Time{time.Now(), time.Now().AddDate(0, 0, 1)} {
			placed, err := builder.BuildDay(ctx, day, false)
			if err != nil && !errors.Is(err, schedule.ErrAlreadyScheduled) {
				logger.Error().Err(err).Time("day", day).Msg("schedule extension failed")
			}
			if placed > 0 {
				bus.Publish(events.Event{Type: events.EventScheduleUpdate, At: time.Now()})
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
