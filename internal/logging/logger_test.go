//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(Config{Level: lvl})
		require.NoError(t, err)
		want, _ := zapcore.ParseLevel(lvl)
		require.True(t, logger.Core().Enabled(want))
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	require.Error(t, err)
	require.NotNil(t, NewOrNop(Config{Level: "chatty"}))
}

func TestDevelopmentUsesConsole(t *testing.T) {
	require.Equal(t, "console", encodingFormat(true))
	require.Equal(t, "json", encodingFormat(false))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	logger, err := New(cfg)
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
