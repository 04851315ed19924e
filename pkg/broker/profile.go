// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package broker

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMaxGear is the highest forward gear in the default gear mapping
const DefaultMaxGear = 6

// Profile errors
var (
	ErrProfileNotObject  = errors.New("profile must be a JSON object")
	ErrMappingsNotObject = errors.New("channelMappings must be an object")
)

// Profile maps protocol channel names onto standard channels and numeric
// gears onto display labels
type Profile struct {
	ChannelMappings map[string]StandardChannel
	GearMapping     map[int]string

	// Adapter selection, consumed by the adapter factory
	Adapter       string
	AdapterConfig map[string]interface{}
}

// DefaultGearMapping returns the manual transmission mapping: R, N, 1-6
func DefaultGearMapping() map[int]string {
	m := map[int]string{-1: "R", 0: "N"}
	for i := 1; i <= DefaultMaxGear; i++ {
		m[i] = strconv.Itoa(i)
	}
	return m
}

// ParseProfile parses a vehicle profile document. Bad mapping entries are
// skipped with a warning on log; only a malformed document or a
// channelMappings value that is not an object fails.
func ParseProfile(data []byte, log *logrus.Entry) (*Profile, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if doc == nil {
		return nil, ErrProfileNotObject
	}

	p := &Profile{ChannelMappings: make(map[string]StandardChannel)}
	p.Adapter, _ = doc["adapter"].(string)
	p.AdapterConfig, _ = doc["adapterConfig"].(map[string]interface{})

	switch mappings := doc["channelMappings"].(type) {
	case nil:
		log.Warn("Profile has no channelMappings, using empty mapping")
	case map[string]interface{}:
		for _, name := range sortedKeys(mappings) {
			property, _ := mappings[name].(string)
			if property == "" {
				log.WithField("channel", name).Warn("Skipping channel mapping, value must be a non-empty string")
				continue
			}
			ch, ok := ParseChannel(property)
			if !ok {
				log.WithFields(logrus.Fields{
					"channel":  name,
					"property": property,
				}).Warn("Skipping channel mapping with unknown property")
				continue
			}
			p.ChannelMappings[name] = ch
		}
	default:
		return nil, ErrMappingsNotObject
	}

	p.GearMapping = parseGearMapping(doc["gearMapping"], log)

	log.WithFields(logrus.Fields{
		"mappings": len(p.ChannelMappings),
		"gears":    len(p.GearMapping),
	}).Info("Loaded profile")
	return p, nil
}

// ReadProfile reads and parses a profile file
func ReadProfile(path string, log *logrus.Entry) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	p, err := ParseProfile(data, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func parseGearMapping(value interface{}, log *logrus.Entry) map[int]string {
	obj, ok := value.(map[string]interface{})
	if !ok {
		log.Debug("Using default manual transmission gear mapping")
		return DefaultGearMapping()
	}

	gears := make(map[int]string, len(obj))
	for _, key := range sortedKeys(obj) {
		gear, err := strconv.Atoi(key)
		if err != nil {
			log.WithField("key", key).Warn("Skipping gear mapping, key must be an integer")
			continue
		}
		label, _ := obj[key].(string)
		if label == "" {
			log.WithField("gear", gear).Warn("Skipping gear mapping, label must be a non-empty string")
			continue
		}
		gears[gear] = label
	}
	return gears
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
