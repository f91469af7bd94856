/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// StreamTags holds the container-level tags attached to a stream.
type StreamTags struct {
	Language string `json:"language"`
}

// Stream describes a single stream in a media container.
type Stream struct {
	Index     int        `json:"index"`
	CodecType string     `json:"codec_type"`
	CodecName string     `json:"codec_name"`
	Tags      StreamTags `json:"tags"`
}

// ProbeResult is the parsed output of a container inspection.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
}

// Prober shells out to ffprobe to inspect media containers.
type Prober struct {
	binary string
}

// NewProber constructs a prober around the given ffprobe binary.
func NewProber(binary string) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

// Inspect executes ffprobe against the path and decodes the stream list.
func (p *Prober) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, errors.New("probe: empty path")
	}

	cmd := exec.CommandContext(ctx, p.binary, "-v", "error", "-hide_banner", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe %s: %w: %s", path, err, strings.TrimSpace(string(output)))
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("probe parse: %w", err)
	}
	return result, nil
}
