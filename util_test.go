package ocr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLibraryPath(t *testing.T) {
	cases := []struct {
		goos, goarch, want string
	}{
		{"windows", "amd64", "onnxruntime.dll"},
		{"linux", "amd64", "onnxruntime_amd64.so"},
		{"linux", "arm64", "onnxruntime_arm64.so"},
		{"darwin", "arm64", "onnxruntime_arm64.dylib"},
		{"freebsd", "amd64", "onnxruntime_amd64.so"},
	}
	for _, c := range cases {
		assert.Equal(t, filepath.Join("lib", c.want), LibraryPath("lib", c.goos, c.goarch))
	}
}

func TestDefaultLibraryPath_Env(t *testing.T) {
	t.Setenv(LibraryPathEnv, "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", DefaultLibraryPath())
}
