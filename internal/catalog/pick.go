/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"math/rand"

	"github.com/friendsincode/hugin_tv/internal/models"
)

// PickShow selects one show at random from candidates, skipping ids in
// exclude. Randomness comes from the caller's rand.Rand so builds are
// reproducible given a seed. Returns nil when no candidate remains.
func PickShow(rng *rand.Rand, candidates []models.Show, exclude map[string]bool) *models.Show {
	eligible := make([]models.Show, 0, len(candidates))
	for _, show := range candidates {
		if exclude[show.ID] {
			continue
		}
		eligible = append(eligible, show)
	}
	if len(eligible) == 0 {
		return nil
	}
	picked := eligible[rng.Intn(len(eligible))]
	return &picked
}

// PickMovie selects one movie at random. Returns nil for an empty list.
func PickMovie(rng *rand.Rand, candidates []models.Movie) *models.Movie {
	if len(candidates) == 0 {
		return nil
	}
	picked := candidates[rng.Intn(len(candidates))]
	return &picked
}
