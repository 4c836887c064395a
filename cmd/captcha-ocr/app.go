package main

import (
	"os"

	"github.com/getcharzp/captcha-ocr/captcha"
	"github.com/getcharzp/captcha-ocr/internal/config"
	"github.com/getcharzp/captcha-ocr/internal/loader"
	"github.com/getcharzp/captcha-ocr/internal/logging"
	"github.com/getcharzp/captcha-ocr/internal/metrics"
	"github.com/getcharzp/captcha-ocr/internal/onnx"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// app 保存一次命令执行期间的进程级状态
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	factory loader.SessionFactory // 为空时使用 onnxruntime
	reg     *captcha.Registry
	ort     *onnx.Config
}

func newApp() *app {
	return &app{logger: zerolog.Nop()}
}

func (a *app) initLogger() {
	console := isatty.IsTerminal(os.Stderr.Fd())
	a.logger = logging.New(os.Stderr, a.cfg.LogLevel, console)
}

// open 初始化运行环境并加载全部模型
func (a *app) open() error {
	factory := a.factory
	if factory == nil {
		a.ort = &onnx.Config{
			OnnxRuntimeLibPath: a.cfg.OnnxRuntimeLibPath,
			IntraOpThreads:     a.cfg.IntraOpThreads,
		}
		if err := a.ort.New(); err != nil {
			a.shutdownRuntime()
			return err
		}
		factory = loader.ONNXSessionFactory(a.ort)
	}
	reg, err := loader.LoadDir(a.cfg.ModelsDir, factory, loader.Options{
		DefaultModel: a.cfg.DefaultModel,
		Logger:       a.logger,
	})
	if err != nil {
		a.shutdownRuntime()
		return err
	}
	a.reg = reg
	a.logger.Info().Int("models", reg.Len()).Str("default", reg.DefaultName()).Msg("模型注册表就绪")
	return nil
}

// close 释放全部句柄与运行环境，并在需要时写出指标
func (a *app) close() error {
	var err error
	if a.reg != nil {
		err = a.reg.Close()
		a.reg = nil
	}
	a.shutdownRuntime()
	if a.cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(a.cfg.MetricsFile); werr != nil {
			a.logger.Warn().Err(werr).Str("path", a.cfg.MetricsFile).Msg("写入指标文件失败")
		}
	}
	return err
}

func (a *app) shutdownRuntime() {
	if a.ort == nil {
		return
	}
	a.ort.Destroy()
	onnx.Shutdown()
	a.ort = nil
}
