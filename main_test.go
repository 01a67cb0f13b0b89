package main

import (
	"context"
	"errors"
	"testing"

	"sjsage522/placereviewworker/config"
	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/services/sink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) LogError(string, error)        {}
func (nopLogger) LogInfo(string, ...interface{}) {}

var _ helpers.LoggerInterface = nopLogger{}

type failingSelector struct{}

func (failingSelector) Fastest(context.Context) (string, error) {
	return "", errors.New("no working proxies")
}

func TestBuildJobModes(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.PlaceNames = nil
	cfg.SearchQuery = ""
	services := &Services{}

	_, err := buildJob("bogus", cfg, services, nopLogger{})
	assert.ErrorContains(t, err, "unknown mode")

	for _, mode := range []string{"reviews", "info", "menus", "keywords", "competitors"} {
		_, err := buildJob(mode, cfg, services, nopLogger{})
		assert.Error(t, err, mode)
	}

	job, err := buildJob("analyze", cfg, services, nopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "analyze", job.Name())

	cfg.PlaceNames = []string{"목구멍 방학점"}
	for _, mode := range []string{"reviews", "info", "menus", "keywords"} {
		job, err := buildJob(mode, cfg, services, nopLogger{})
		require.NoError(t, err, mode)
		assert.Equal(t, mode, job.Name())
	}

	cfg.SearchQuery = "방학동 고기집"
	job, err = buildJob("competitors", cfg, services, nopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "competitors", job.Name())
}

func TestBuildJobBadDictionary(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.SentimentDictPath = t.TempDir() + "/missing.csv"
	_, err := buildJob("analyze", cfg, &Services{}, nopLogger{})
	assert.Error(t, err)
}

func TestReviewSink(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.OutputDir = t.TempDir()

	cfg.OutputFormats = []string{"csv"}
	_, ok := reviewSink(cfg, &Services{}).(*sink.CSVSink)
	assert.True(t, ok)

	cfg.OutputFormats = []string{"csv", "xlsx"}
	multi, ok := reviewSink(cfg, &Services{}).(sink.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}

func TestHarvestOptionsFromConfig(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.HardMax = 50
	cfg.IdleThreshold = 4
	opts := harvestOptions(cfg)
	assert.Equal(t, 50, opts.HardMax)
	assert.Equal(t, 4, opts.IdleThreshold)
	assert.Equal(t, cfg.ScrollStepFraction, opts.StepFraction)
}

func TestProxiedSessionsHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := browserOptions(config.LoadConfig())
	open := proxiedSessions(opts, failingSelector{})
	_, err := open(ctx)
	assert.Error(t, err)
}
