//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package pipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PIPE_SMALL_SIZE", "4096")
	t.Setenv("PIPE_BIG_SIZE", "8192")
	t.Setenv("PIPE_MAX_BIG_BUFFERS", "3")
	t.Setenv("PIPE_MAX_KVA", "0")
	t.Setenv("PIPE_ALLOCATOR", "heap")
	t.Setenv("PIPE_LOG_LEVEL", "debug")
	t.Setenv("PIPE_LOG_DEV", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, Config{
		SmallSize:     4096,
		BigSize:       8192,
		MaxBigBuffers: 3,
		MaxKVA:        0,
		Allocator:     AllocatorHeap,
		LogLevel:      "debug",
		LogDev:        true,
	}, cfg)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("PIPE_SMALL_SIZE", "lots")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	bad := map[string]func(*Config){
		"small below PipeBuf": func(c *Config) { c.SmallSize = PipeBuf - 1 },
		"big below small":     func(c *Config) { c.BigSize = c.SmallSize - 1 },
		"negative big limit":  func(c *Config) { c.MaxBigBuffers = -1 },
		"negative kva":        func(c *Config) { c.MaxKVA = -1 },
		"unknown allocator":   func(c *Config) { c.Allocator = "slab" },
	}
	for name, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		require.Error(t, cfg.Validate(), name)
		_, err := New(cfg)
		require.Error(t, err, name)
	}

	cfg := DefaultConfig()
	cfg.SmallSize = PipeBuf
	require.NoError(t, cfg.Validate())
}
