/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hugin_tv/internal/telemetry"
)

// Corrector propagates observed playout drift into future planned times.
type Corrector struct {
	db     *gorm.DB
	store  *Store
	logger zerolog.Logger
}

// NewCorrector constructs a drift corrector.
func NewCorrector(db *gorm.DB, logger zerolog.Logger) *Corrector {
	return &Corrector{
		db:     db,
		store:  NewStore(db, logger),
		logger: logger.With().Str("component", "drift_corrector").Logger(),
	}
}

// AdjustFutureTimes shifts every not-yet-started entry in the
// contiguous run following the most recent completed entry by the
// delta between that entry's actual and planned end. An entry that is
// already playing keeps its planned times but still chains contiguity
// to the entries behind it. The walk stops at the first entry whose
// planned start does not abut the previous planned end: a gap that was
// scheduled on purpose stays a gap. Returns the number of entries
// shifted. Reapplying with no new completions is a no-op, since the
// first shifted entry no longer abuts its predecessor's planned end.
func (c *Corrector) AdjustFutureTimes(ctx context.Context) (int, error) {
	last, err := c.store.LastCompleted(ctx)
	if err != nil {
		return 0, fmt.Errorf("load last completed entry: %w", err)
	}
	if last == nil {
		c.logger.Debug().Msg("no completed entries, nothing to adjust")
		return 0, nil
	}

	offset := last.ActualEndTime.Sub(last.EndTime)
	telemetry.LastDriftSeconds.Set(offset.Seconds())
	if offset == 0 {
		return 0, nil
	}

	shifted := 0
	err = c.db.Transaction(func(tx *gorm.DB) error {
		store := c.store.WithTx(tx)

		future, err := store.EntriesFrom(ctx, last.EndTime)
		if err != nil {
			return fmt.Errorf("load future entries: %w", err)
		}

		prevEnd := last.EndTime
		for _, entry := range future {
			if !entry.StartTime.Equal(prevEnd) {
				break
			}
			prevEnd = entry.EndTime
			// An in-flight entry anchors the run but is not moved.
			if entry.ActualStartTime != nil {
				continue
			}
			if err := store.UpdateTimes(ctx, entry.ID, entry.StartTime.Add(offset), entry.EndTime.Add(offset)); err != nil {
				return fmt.Errorf("shift entry %s: %w", entry.ID, err)
			}
			shifted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if shifted > 0 {
		telemetry.EntriesShifted.Add(float64(shifted))
		c.logger.Info().
			Dur("offset", offset).
			Int("shifted", shifted).
			Time("anchor", *last.ActualEndTime).
			Msg("adjusted future entry times")
	}
	return shifted, nil
}
