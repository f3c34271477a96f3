package signalflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, DefaultApproaches, config.Approaches)
	assert.Equal(t, 30*time.Second, config.Signal.DefaultGreen)
	assert.Equal(t, 10*time.Second, config.Signal.MinGreen)
	assert.Equal(t, 90*time.Second, config.Signal.MaxGreen)
	assert.Equal(t, 3*time.Second, config.Signal.Yellow)
	assert.Equal(t, 10.0, config.Analyzer.CongestionThreshold)
	assert.Equal(t, 10, config.Analyzer.WindowSize)
	assert.Equal(t, time.Second, config.Loop.Period)
}

func TestDefaultConfig_ApproachesAreCopied(t *testing.T) {
	config := DefaultConfig()
	config.Approaches[0] = "changed"

	assert.Equal(t, North, DefaultApproaches[0])
}

func TestConfig_ValidateOrdering(t *testing.T) {
	config := DefaultConfig()
	config.Signal.MinGreen = 40 * time.Second

	err := config.Validate()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "min_green_time <= default_green_time <= max_green_time")
}

func TestConfig_ValidateStructTags(t *testing.T) {
	testCases := map[string]struct {
		mutate func(*Config)
		field  string
	}{
		"zero yellow": {
			mutate: func(c *Config) { c.Signal.Yellow = 0 },
			field:  "Yellow",
		},
		"zero threshold": {
			mutate: func(c *Config) { c.Analyzer.CongestionThreshold = 0 },
			field:  "CongestionThreshold",
		},
		"zero window": {
			mutate: func(c *Config) { c.Analyzer.WindowSize = 0 },
			field:  "WindowSize",
		},
		"no approaches": {
			mutate: func(c *Config) { c.Approaches = nil },
			field:  "Approaches",
		},
		"duplicate approaches": {
			mutate: func(c *Config) { c.Approaches = []Approach{North, North} },
			field:  "Approaches",
		},
		"unknown detector mode": {
			mutate: func(c *Config) { c.Detector.Mode = "camera" },
			field:  "Mode",
		},
		"replay without file": {
			mutate: func(c *Config) { c.Detector.Mode = "replay" },
			field:  "ReplayFile",
		},
		"subscribe without address": {
			mutate: func(c *Config) { c.Detector.Mode = "subscribe" },
			field:  "Address",
		},
		"unknown initial approach": {
			mutate: func(c *Config) { c.Signal.InitialApproach = "up" },
			field:  "InitialApproach",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(&config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestConfig_CollectsAllIssues(t *testing.T) {
	config := DefaultConfig()
	config.Signal.Yellow = 0
	config.Analyzer.WindowSize = 0

	err := config.Validate()
	require.Error(t, err)

	configErr, ok := err.(*ConfigurationError)
	require.True(t, ok)
	assert.Len(t, configErr.Issues, 2)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intersection.yaml")
	content := `
approaches: [main, side]
signal:
  default_green_time: 20s
  min_green_time: 5s
  max_green_time: 60s
  yellow_time: 4s
  initial_approach: side
analyzer:
  congestion_threshold: 15
detector:
  mode: replay
  replay_file: counts.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []Approach{"main", "side"}, config.Approaches)
	assert.Equal(t, 20*time.Second, config.Signal.DefaultGreen)
	assert.Equal(t, 4*time.Second, config.Signal.Yellow)
	assert.Equal(t, Approach("side"), config.Signal.InitialApproach)
	assert.Equal(t, 15.0, config.Analyzer.CongestionThreshold)
	assert.Equal(t, "replay", config.Detector.Mode)

	// unset keys keep their defaults
	assert.Equal(t, 100*time.Millisecond, config.Signal.TickInterval)
	assert.Equal(t, 10, config.Analyzer.WindowSize)
	assert.Equal(t, time.Second, config.Loop.Period)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signal: [unclosed"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signal:\n  yellow_time: 0s\n"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestSignalConfig_ClampGreen(t *testing.T) {
	config := DefaultConfig().Signal

	assert.Equal(t, 10*time.Second, config.ClampGreen(time.Second))
	assert.Equal(t, 45*time.Second, config.ClampGreen(45*time.Second))
	assert.Equal(t, 90*time.Second, config.ClampGreen(time.Hour))
}
