// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frame

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.einride.tech/can"
)

// CandumpEntry is one line of a candump log
type CandumpEntry struct {
	Timestamp time.Time
	Interface string
	Frame     *Frame
}

// ParseCandumpLine parses a candump log line: "(sec.usec) iface ID#DATA"
func ParseCandumpLine(line string) (*CandumpEntry, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}

	ts, err := parseCandumpTimestamp(fields[0])
	if err != nil {
		return nil, err
	}

	var cf can.Frame
	if err := cf.UnmarshalString(fields[2]); err != nil {
		return nil, fmt.Errorf("invalid frame %q: %w", fields[2], err)
	}
	if err := cf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frame %q: %w", fields[2], err)
	}

	return &CandumpEntry{
		Timestamp: ts,
		Interface: fields[1],
		Frame:     fromEinride(cf, ts),
	}, nil
}

// FormatCandumpLine formats a frame as a candump log line
func FormatCandumpLine(iface string, f *Frame) string {
	ts := f.Timestamp()
	return fmt.Sprintf("(%d.%06d) %s %s", ts.Unix(), ts.Nanosecond()/1000, iface, toEinride(f).String())
}

// ReadCandump reads every parsable entry from a candump log.
// Unparsable lines are skipped and counted.
func ReadCandump(r io.Reader) ([]*CandumpEntry, int, error) {
	var entries []*CandumpEntry
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := ParseCandumpLine(line)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}

	return entries, skipped, scanner.Err()
}

func parseCandumpTimestamp(field string) (time.Time, error) {
	if !strings.HasPrefix(field, "(") || !strings.HasSuffix(field, ")") {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", field)
	}
	secStr, usecStr, ok := strings.Cut(field[1:len(field)-1], ".")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", field)
	}
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp seconds: %w", err)
	}
	usec, err := strconv.ParseInt(usecStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp microseconds: %w", err)
	}
	return time.Unix(sec, usec*1000), nil
}

func fromEinride(cf can.Frame, ts time.Time) *Frame {
	if cf.IsRemote {
		return newRemoteFrame(cf.ID, int(cf.Length), cf.IsExtended, ts)
	}
	return newFrame(cf.ID, cf.Data[:cf.Length], cf.IsExtended, false, ts)
}

func toEinride(f *Frame) can.Frame {
	cf := can.Frame{
		ID:         f.ID(),
		Length:     uint8(f.DLC()),
		IsExtended: f.IsExtended(),
		IsRemote:   f.IsRemote(),
	}
	copy(cf.Data[:], f.Data())
	return cf
}
