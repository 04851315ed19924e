// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/devdash/pkg/frame"
)

// maxReplayGap caps the delay between two recorded frames
const maxReplayGap = 2 * time.Second

// ReplaySource plays back a CBOR capture or candump log
type ReplaySource struct {
	path    string
	frames  []*frame.Frame
	speed   float64
	loop    bool
	skipped int
}

// OpenReplay loads a recording. Files ending in .cbor are read as captures,
// anything else as a candump log. speed scales playback time; 0 replays as
// fast as possible.
func OpenReplay(path string, speed float64, loop bool) (*ReplaySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}

	r := &ReplaySource{path: path, speed: speed, loop: loop}

	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		r.frames, err = frame.NewCaptureReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		entries, skipped, err := frame.ReadCandump(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		r.skipped = skipped
		for _, e := range entries {
			r.frames = append(r.frames, e.Frame)
		}
	}

	if len(r.frames) == 0 {
		return nil, fmt.Errorf("%s: recording contains no frames", path)
	}
	return r, nil
}

// NewReplaySource plays back frames already in memory
func NewReplaySource(frames []*frame.Frame, speed float64, loop bool) *ReplaySource {
	return &ReplaySource{path: "memory", frames: frames, speed: speed, loop: loop}
}

// Description implements Source
func (r *ReplaySource) Description() string {
	return fmt.Sprintf("Replay: %s (%d frames)", r.path, len(r.frames))
}

// Frames returns the number of recorded frames
func (r *ReplaySource) Frames() int {
	return len(r.frames)
}

// Skipped returns the number of unparsable log lines
func (r *ReplaySource) Skipped() int {
	return r.skipped
}

// Run implements Source. It returns nil once the recording is exhausted.
func (r *ReplaySource) Run(ctx context.Context, handle Handler) error {
	for {
		if err := r.playOnce(ctx, handle); err != nil || ctx.Err() != nil {
			return nil
		}
		if !r.loop {
			return nil
		}
	}
}

func (r *ReplaySource) playOnce(ctx context.Context, handle Handler) error {
	var prev time.Time
	for _, f := range r.frames {
		if delay := r.delay(prev, f.Timestamp()); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		prev = f.Timestamp()
		handle(f, nil)
	}
	return nil
}

func (r *ReplaySource) delay(prev, next time.Time) time.Duration {
	if r.speed <= 0 || prev.IsZero() || !next.After(prev) {
		return 0
	}
	gap := next.Sub(prev)
	if gap > maxReplayGap {
		gap = maxReplayGap
	}
	return time.Duration(float64(gap) / r.speed)
}

// Close implements Source
func (r *ReplaySource) Close() error {
	return nil
}
