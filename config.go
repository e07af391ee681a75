//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Allocator names accepted by Config.Allocator.
const (
	AllocatorHeap = "heap"
	AllocatorMmap = "mmap"
)

// Config holds the tunables of the pipe subsystem.
type Config struct {
	SmallSize     int    `envconfig:"SMALL_SIZE" default:"16384"`
	BigSize       int    `envconfig:"BIG_SIZE" default:"65536"`
	MaxBigBuffers int    `envconfig:"MAX_BIG_BUFFERS" default:"32"`
	MaxKVA        int64  `envconfig:"MAX_KVA" default:"8388608"`
	Allocator     string `envconfig:"ALLOCATOR" default:"mmap"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev        bool   `envconfig:"LOG_DEV" default:"false"`
}

// DefaultConfig returns the historical BSD sizing.
func DefaultConfig() Config {
	return Config{
		SmallSize:     DefaultSmallSize,
		BigSize:       DefaultBigSize,
		MaxBigBuffers: DefaultMaxBigBuffers,
		MaxKVA:        DefaultMaxKVA,
		Allocator:     AllocatorMmap,
		LogLevel:      "info",
	}
}

// LoadConfig reads PIPE_* environment variables on top of the defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("PIPE", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the sizes are usable.
func (c Config) Validate() error {
	switch {
	case c.SmallSize < PipeBuf:
		// a buffer smaller than PipeBuf could never take an atomic write
		return fmt.Errorf("small size %d is below PIPE_BUF (%d)", c.SmallSize, PipeBuf)
	case c.BigSize < c.SmallSize:
		return fmt.Errorf("big size %d is below small size %d", c.BigSize, c.SmallSize)
	case c.MaxBigBuffers < 0:
		return fmt.Errorf("negative big buffer limit %d", c.MaxBigBuffers)
	case c.MaxKVA < 0:
		return fmt.Errorf("negative kva limit %d", c.MaxKVA)
	}
	switch c.Allocator {
	case AllocatorHeap, AllocatorMmap:
	default:
		return fmt.Errorf("unknown allocator %q", c.Allocator)
	}
	return nil
}
