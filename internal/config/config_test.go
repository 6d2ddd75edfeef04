package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8741, cfg.Port)
	require.Equal(t, 768, cfg.EmbeddingDim)
	require.Equal(t, 90.0, cfg.HalfLifeDays)
	require.True(t, cfg.ExtractionEnabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HALF_LIFE_DAYS", "30")
	t.Setenv("EXTRACTION_ENABLED", "false")
	t.Setenv("QDRANT_COLLECTION", "test_triples")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 30.0, cfg.HalfLifeDays)
	require.False(t, cfg.ExtractionEnabled)
	require.Equal(t, "test_triples", cfg.Collection)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sophia.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9100\nembedding_dim: 384\n"), 0o644))
	t.Setenv("SOPHIA_CONFIG", path)
	t.Setenv("PORT", "9200")

	cfg, err := Load()
	require.NoError(t, err)
	// Environment wins over the file; the file wins over defaults.
	require.Equal(t, 9200, cfg.Port)
	require.Equal(t, 384, cfg.EmbeddingDim)
}

func TestLoadValidation(t *testing.T) {
	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("PORT", "70000")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("confidence above one", func(t *testing.T) {
		t.Setenv("DEFAULT_CONFIDENCE", "1.5")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("SOPHIA_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load()
		require.Error(t, err)
	})
}
