// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package haltech

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultDefinition is the bundled Haltech CAN protocol v2.35 definition
//
//go:embed definitions/haltech-v2.35.json
var DefaultDefinition []byte

// ChannelDefinition describes one channel carried in a frame
type ChannelDefinition struct {
	Name       string
	Bytes      []int // 1 or 2 byte indices, big-endian
	Signed     bool
	Units      string
	Conversion ConversionKind
}

// maxIndex returns the highest byte index the channel reads
func (c *ChannelDefinition) maxIndex() int {
	m := c.Bytes[0]
	for _, b := range c.Bytes[1:] {
		if b > m {
			m = b
		}
	}
	return m
}

// FrameDefinition describes one frame id
type FrameDefinition struct {
	ID       uint32
	Name     string
	RateHz   int
	Channels []ChannelDefinition
}

// Wire shapes of the definition file
type definitionFile struct {
	Frames map[string]jsoniter.RawMessage `json:"frames"`
}

type frameEntry struct {
	Name     string                `json:"name"`
	RateHz   int                   `json:"rate_hz"`
	Channels []jsoniter.RawMessage `json:"channels"`
}

type channelEntry struct {
	Name       string `json:"name"`
	Bytes      []int  `json:"bytes"`
	Signed     bool   `json:"signed"`
	Units      string `json:"units"`
	Conversion string `json:"conversion"`
}

// parseDefinition parses a definition document. Frames and channels that
// cannot be parsed are skipped and logged.
func parseDefinition(data []byte, log *logrus.Entry) (map[uint32]*FrameDefinition, error) {
	var doc definitionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse protocol definition: %w", err)
	}

	frames := make(map[uint32]*FrameDefinition, len(doc.Frames))

	// Iterate in key order so warnings are reproducible
	keys := make([]string, 0, len(doc.Frames))
	for k := range doc.Frames {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		id, err := parseFrameID(key)
		if err != nil {
			log.WithField("frame", key).Warn("Invalid frame ID")
			continue
		}

		var entry frameEntry
		if err := json.Unmarshal(doc.Frames[key], &entry); err != nil {
			log.WithField("frame", key).WithError(err).Warn("Invalid frame entry")
			continue
		}

		def := &FrameDefinition{
			ID:     id,
			Name:   entry.Name,
			RateHz: entry.RateHz,
		}
		for i, raw := range entry.Channels {
			ch, err := parseChannel(raw)
			if err != nil {
				log.WithFields(logrus.Fields{"frame": key, "channel": i}).WithError(err).Warn("Invalid channel entry")
				continue
			}
			def.Channels = append(def.Channels, ch)
		}

		frames[id] = def
	}

	return frames, nil
}

func parseChannel(raw jsoniter.RawMessage) (ChannelDefinition, error) {
	var entry channelEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ChannelDefinition{}, err
	}
	if entry.Name == "" {
		return ChannelDefinition{}, fmt.Errorf("missing channel name")
	}
	if len(entry.Bytes) == 0 || len(entry.Bytes) > 2 {
		return ChannelDefinition{}, fmt.Errorf("channel %q: expected 1 or 2 byte indices, got %d", entry.Name, len(entry.Bytes))
	}
	for _, b := range entry.Bytes {
		if b < 0 {
			return ChannelDefinition{}, fmt.Errorf("channel %q: negative byte index %d", entry.Name, b)
		}
	}

	return ChannelDefinition{
		Name:       entry.Name,
		Bytes:      entry.Bytes,
		Signed:     entry.Signed,
		Units:      entry.Units,
		Conversion: conversionFor(entry.Units, entry.Conversion),
	}, nil
}

// parseFrameID parses a hex frame id with or without a 0x prefix
func parseFrameID(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	id, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}
