package embedding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorPaths(t *testing.T) {
	loc := &Locator{BaseDir: "/models"}

	assert.Equal(t, filepath.Join("/models", DefaultModel, "model.onnx"), loc.ModelPath(DefaultModel))
	assert.Equal(t, filepath.Join("/models", DefaultModel, "vocab.txt"), loc.VocabPath(DefaultModel))
}

func TestLocatorEnvOverride(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, []byte("stub"), 0600))
	t.Setenv("ONNXRUNTIME_LIB_PATH", lib)

	loc := &Locator{BaseDir: t.TempDir()}
	assert.Equal(t, lib, loc.SharedLibraryPath())
}

func TestModelAvailable(t *testing.T) {
	base := t.TempDir()
	loc := &Locator{BaseDir: base}
	assert.False(t, loc.ModelAvailable(DefaultModel))

	dir := filepath.Join(base, DefaultModel)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("stub"), 0600))
	assert.True(t, loc.ModelAvailable(DefaultModel))
}
