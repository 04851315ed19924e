// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package adapter

import (
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/Thermoquad/devdash/pkg/telemetry"
)

// channelCache holds the last value seen per channel name
type channelCache struct {
	mu     deadlock.RWMutex
	values map[string]telemetry.Value
}

func newChannelCache() *channelCache {
	return &channelCache{values: make(map[string]telemetry.Value)}
}

func (c *channelCache) set(name string, v telemetry.Value) {
	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
}

func (c *channelCache) get(name string) (telemetry.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// names returns the cached channel names, sorted
func (c *channelCache) names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	c.mu.RUnlock()

	sort.Strings(names)
	return names
}
