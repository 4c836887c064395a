// Package ocr 提供多模型验证码识别，核心类型见 captcha 包
package ocr

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// LibraryPathEnv 指定 onnxruntime 动态库路径的环境变量
const LibraryPathEnv = "ONNXRUNTIME_LIB_PATH"

// DefaultLibraryPath 根据运行时环境判断加载哪个库文件，环境变量优先
func DefaultLibraryPath() string {
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p
	}
	return LibraryPath("./lib", runtime.GOOS, runtime.GOARCH)
}

// LibraryPath 返回 baseDir 下对应平台的库文件路径
func LibraryPath(baseDir, goos, goarch string) string {
	libName := "onnxruntime"

	// windows onnxruntime.dll
	if goos == "windows" {
		return filepath.Join(baseDir, libName+".dll")
	}

	// linux darwin ext
	var ext string
	switch goos {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return filepath.Join(baseDir, libName+"_amd64.so") // 默认返回 linux amd64
	}

	// 拼接完整路径: baseDir/onnxruntime + _ + amd64/arm64 + . + so/dylib
	return filepath.Join(baseDir, fmt.Sprintf("%s_%s.%s", libName, goarch, ext))
}
