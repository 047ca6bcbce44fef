package wbcache

import (
	"os"
	"testing"
	"time"

	"github.com/naoina/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalizeFillsDefaults(t *testing.T) {
	cfg := Config{}.normalize()
	assert.Equal(t, DefaultAccessTTL, cfg.AccessTTL)
	assert.Equal(t, DefaultPruneInterval, cfg.PruneInterval)

	cfg = Config{AccessTTL: time.Minute}.normalize()
	assert.Equal(t, time.Minute, cfg.AccessTTL)
	assert.Equal(t, DefaultPruneInterval, cfg.PruneInterval)
}

func TestConfigLoadsFromTOML(t *testing.T) {
	data, err := os.ReadFile("testdata/config.toml")
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, toml.Unmarshal(data, &cfg))
	assert.Equal(t, 30*time.Second, cfg.AccessTTL)
	assert.Equal(t, 15*time.Second, cfg.PruneInterval)
}

func TestWithOptions(t *testing.T) {
	cfg := DefaultConfig()
	WithAccessTTL(time.Hour)(&cfg)
	WithPruneInterval(time.Minute)(&cfg)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, time.Minute, cfg.PruneInterval)
}
