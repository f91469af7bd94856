/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"fmt"
	"time"
)

// StreamSpec describes one live playout invocation of the transcoder.
type StreamSpec struct {
	InputPath   string
	SkipOffset  time.Duration // seek into the input when resuming mid-entry
	Tracks      TrackSelection
	Width       int
	Height      int
	Watermark   string // optional overlay image path
	Destination string
}

// StreamArgs builds the ffmpeg argument list for live playout: realtime
// input pacing, explicit stream maps, fit/pad to the canonical frame,
// a fixed a/v encode profile, and flv out to the destination.
func StreamArgs(spec StreamSpec) []string {
	args := []string{"-re"}

	if spec.SkipOffset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.2f", spec.SkipOffset.Seconds()))
	}

	args = append(args, "-i", spec.InputPath)
	if spec.Watermark != "" {
		args = append(args, "-i", spec.Watermark)
	}

	fit := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=yuv420p",
		spec.Width, spec.Height, spec.Width, spec.Height,
	)

	if spec.Watermark != "" {
		filter := fmt.Sprintf("[0:%d]%s[base];[base][1:v]overlay=W-w-40:40[v]", spec.Tracks.VideoIndex, fit)
		args = append(args, "-filter_complex", filter, "-map", "[v]")
	} else {
		args = append(args,
			"-map", fmt.Sprintf("0:%d", spec.Tracks.VideoIndex),
			"-vf", fit,
		)
	}

	args = append(args,
		"-map", fmt.Sprintf("0:%d", spec.Tracks.AudioIndex),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", "30000/1001",
		"-c:a", "aac",
		"-ar", "44100",
		"-b:a", "256k",
		"-ac", "1",
		"-f", "flv",
		spec.Destination,
	)

	return args
}
