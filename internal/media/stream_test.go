/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"strings"
	"testing"
	"time"
)

func argsString(args []string) string {
	return strings.Join(args, " ")
}

func TestStreamArgs_Basic(t *testing.T) {
	t.Parallel()

	args := StreamArgs(StreamSpec{
		InputPath:   "/media/show.mkv",
		Tracks:      TrackSelection{VideoIndex: 0, AudioIndex: 1},
		Width:       1920,
		Height:      1080,
		Destination: "rtmp://localhost/live/stream",
	})
	joined := argsString(args)

	if args[0] != "-re" {
		t.Fatalf("first arg %q, want -re", args[0])
	}
	if strings.Contains(joined, "-ss") {
		t.Fatal("no seek expected without a skip offset")
	}
	for _, want := range []string{
		"-i /media/show.mkv",
		"-map 0:0",
		"-map 0:1",
		"scale=1920:1080:force_original_aspect_ratio=decrease",
		"pad=1920:1080:(ow-iw)/2:(oh-ih)/2",
		"-c:v libx264",
		"-r 30000/1001",
		"-c:a aac",
		"-ar 44100",
		"-b:a 256k",
		"-ac 1",
		"-f flv rtmp://localhost/live/stream",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestStreamArgs_ResumeSeeks(t *testing.T) {
	t.Parallel()

	args := StreamArgs(StreamSpec{
		InputPath:   "/media/show.mkv",
		SkipOffset:  600 * time.Second,
		Tracks:      TrackSelection{VideoIndex: 0, AudioIndex: 1},
		Width:       1280,
		Height:      720,
		Destination: "rtmp://localhost/live/stream",
	})
	joined := argsString(args)

	if !strings.Contains(joined, "-ss 600.00") {
		t.Fatalf("resume seek missing: %s", joined)
	}
	// Seek precedes the input for fast input-side seeking.
	if strings.Index(joined, "-ss") > strings.Index(joined, "-i ") {
		t.Fatalf("-ss must come before -i: %s", joined)
	}
}

func TestStreamArgs_Watermark(t *testing.T) {
	t.Parallel()

	args := StreamArgs(StreamSpec{
		InputPath:   "/media/show.mkv",
		Tracks:      TrackSelection{VideoIndex: 2, AudioIndex: 3},
		Width:       1920,
		Height:      1080,
		Watermark:   "/branding/bug.png",
		Destination: "rtmp://localhost/live/stream",
	})
	joined := argsString(args)

	for _, want := range []string{
		"-i /branding/bug.png",
		"-filter_complex [0:2]",
		"overlay=W-w-40:40[v]",
		"-map [v]",
		"-map 0:3",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "-vf ") {
		t.Fatal("watermarked output must use filter_complex, not -vf")
	}
}
