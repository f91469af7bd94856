/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Fallback stream indices used when probing finds nothing usable.
const (
	FallbackVideoIndex = 0
	FallbackAudioIndex = 1
)

// Codecs the output profile can pass to the encoder without surprises;
// a language-matched track in one of these wins over any other.
var approvedAudioCodecs = map[string]bool{
	"aac":  true,
	"ac3":  true,
	"eac3": true,
	"mp3":  true,
	"flac": true,
	"opus": true,
}

// TrackSelection holds the stream indices mapped into the encoder.
type TrackSelection struct {
	VideoIndex int
	AudioIndex int
}

// SelectAudio picks the audio stream index: a track in the preferred
// language with an approved codec, else any track in the language,
// else the first audio track. ok is false when no audio exists at all.
func SelectAudio(streams []Stream, language string) (int, bool) {
	first := -1
	languageMatch := -1
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		if first == -1 {
			first = stream.Index
		}
		if !strings.EqualFold(stream.Tags.Language, language) {
			continue
		}
		if languageMatch == -1 {
			languageMatch = stream.Index
		}
		if approvedAudioCodecs[strings.ToLower(stream.CodecName)] {
			return stream.Index, true
		}
	}
	if languageMatch != -1 {
		return languageMatch, true
	}
	if first != -1 {
		return first, true
	}
	return FallbackAudioIndex, false
}

// SelectVideo picks the first video stream index. ok is false when no
// video stream exists.
func SelectVideo(streams []Stream) (int, bool) {
	for _, stream := range streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream.Index, true
		}
	}
	return FallbackVideoIndex, false
}

// Resolver combines probing and track selection. Probe failures
// degrade to the fixed fallback indices; playback proceeds regardless.
type Resolver struct {
	prober   *Prober
	language string
	logger   zerolog.Logger
}

// NewResolver constructs a track resolver.
func NewResolver(prober *Prober, language string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		prober:   prober,
		language: language,
		logger:   logger.With().Str("component", "track_resolver").Logger(),
	}
}

// Resolve probes the path and applies the selection rules.
func (r *Resolver) Resolve(ctx context.Context, path string) TrackSelection {
	result, err := r.prober.Inspect(ctx, path)
	if err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("probe failed, using fallback stream indices")
		return TrackSelection{VideoIndex: FallbackVideoIndex, AudioIndex: FallbackAudioIndex}
	}

	video, ok := SelectVideo(result.Streams)
	if !ok {
		r.logger.Error().Str("path", path).Msg("no video stream found, using fallback index")
	}
	audio, ok := SelectAudio(result.Streams, r.language)
	if !ok {
		r.logger.Error().Str("path", path).Str("language", r.language).Msg("no audio stream found, using fallback index")
	}

	return TrackSelection{VideoIndex: video, AudioIndex: audio}
}
