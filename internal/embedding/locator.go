package embedding

import (
	"os"
	"path/filepath"
	"runtime"
)

// Locator resolves model files and the ONNX runtime shared library when the
// configuration leaves their paths empty.
type Locator struct {
	// BaseDir is the base directory for model storage
	BaseDir string
}

// NewLocator creates a locator rooted at the default model directory.
func NewLocator() *Locator {
	homeDir, _ := os.UserHomeDir()
	return &Locator{
		BaseDir: filepath.Join(homeDir, ".mathrouter", "models"),
	}
}

// ModelPath returns the path to the ONNX model file for the named model.
func (l *Locator) ModelPath(modelName string) string {
	return filepath.Join(l.BaseDir, modelName, "model.onnx")
}

// VocabPath returns the path to the vocabulary file for the named model.
func (l *Locator) VocabPath(modelName string) string {
	return filepath.Join(l.BaseDir, modelName, "vocab.txt")
}

// SharedLibraryPath returns the path to the ONNX runtime shared library,
// checking the ONNXRUNTIME_LIB_PATH environment variable first and then
// common installation locations. Returns an empty string if none is found.
func (l *Locator) SharedLibraryPath() string {
	if envPath := os.Getenv("ONNXRUNTIME_LIB_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
			filepath.Join(l.BaseDir, "..", "lib", "libonnxruntime.dylib"),
		}
	case "linux":
		paths = []string{
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
			filepath.Join(l.BaseDir, "..", "lib", "libonnxruntime.so"),
		}
	case "windows":
		paths = []string{
			"C:\\Program Files\\onnxruntime\\lib\\onnxruntime.dll",
			filepath.Join(l.BaseDir, "..", "lib", "onnxruntime.dll"),
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ModelAvailable checks whether the model file exists on disk.
func (l *Locator) ModelAvailable(modelName string) bool {
	_, err := os.Stat(l.ModelPath(modelName))
	return err == nil
}
