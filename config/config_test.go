package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoFileOrFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallelPluginLoad: false\nnumRecents: 3\n"), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(path, fs, nil)
	require.NoError(t, err)

	assert.False(t, cfg.ParallelPluginLoad)
	assert.Equal(t, 3, cfg.NumRecents)
}

func TestLoad_FlagsOverrideYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("numRecents: 3\n"), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(path, fs, []string{"--num-recents=99"})
	require.NoError(t, err)

	assert.Equal(t, 99, cfg.NumRecents)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("/nonexistent/server.yaml", fs, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
