/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "/dev/shm", cfg.Segment.Dir)
	assert.Equal(t, "sharedmem", cfg.Segment.Prefix)
	assert.True(t, cfg.Segment.CheckFreeSpace)

	assert.Zero(t, cfg.Heap.PageSize)
	assert.Equal(t, 1<<20, cfg.Heap.ArenaCeiling)
	assert.True(t, cfg.Heap.AttachCache)

	assert.Equal(t, 65536, cfg.Fill.ParallelThreshold)
	assert.Zero(t, cfg.Fill.Workers)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SHAREDMEM_SEGMENT_DIR":              "/tmp/shm",
		"SHAREDMEM_SEGMENT_PREFIX":           "demo",
		"SHAREDMEM_SEGMENT_CHECK_FREE_SPACE": "false",
		"SHAREDMEM_HEAP_PAGE_SIZE":           "16384",
		"SHAREDMEM_HEAP_ARENA_CEILING":       "65536",
		"SHAREDMEM_HEAP_ATTACH_CACHE":        "false",
		"SHAREDMEM_FILL_PARALLEL_THRESHOLD":  "-1",
		"SHAREDMEM_FILL_WORKERS":             "4",
		"SHAREDMEM_LOG_LEVEL":                "debug",
		"SHAREDMEM_LOG_DEV":                  "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/shm", cfg.Segment.Dir)
	assert.Equal(t, "demo", cfg.Segment.Prefix)
	assert.False(t, cfg.Segment.CheckFreeSpace)
	assert.Equal(t, 16384, cfg.Heap.PageSize)
	assert.Equal(t, 65536, cfg.Heap.ArenaCeiling)
	assert.False(t, cfg.Heap.AttachCache)
	assert.Equal(t, -1, cfg.Fill.ParallelThreshold)
	assert.Equal(t, 4, cfg.Fill.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)

	logger := zap.NewNop()
	assert.Equal(t, "/tmp/shm", cfg.ProviderOptions(logger).Dir)
	assert.True(t, cfg.AttacherOptions(logger, nil).DisableCache)
	assert.Equal(t, 16384, cfg.AllocatorOptions(logger, nil).PageSize)
	assert.Equal(t, 4, cfg.FillOptions().Workers)
	assert.True(t, cfg.LoggingConfig().Development)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("SHAREDMEM_HEAP_PAGE_SIZE", "lots")
	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Heap.PageSize = -1
	cfg.Fill.Workers = -2
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page size")
	assert.Contains(t, err.Error(), "fill workers")
	assert.Contains(t, err.Error(), "log level")

	t.Setenv("SHAREDMEM_SEGMENT_DIR", "")
	_, err = Load()
	assert.ErrorContains(t, err, "segment dir")
}
