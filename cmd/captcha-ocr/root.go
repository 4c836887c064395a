package main

import (
	"fmt"

	ocr "github.com/getcharzp/captcha-ocr"
	"github.com/getcharzp/captcha-ocr/internal/config"
	"github.com/spf13/cobra"
)

const (
	defaultModelsDir = "./models"
	defaultLogLevel  = "info"
)

// newRootCmd 构建命令树，命令行参数覆盖配置文件中的同名项
func newRootCmd(a *app) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "captcha-ocr",
		Short:         "多模型验证码识别",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "配置文件路径 (.yaml/.yml/.json/.toml)")
	pf.String("models-dir", defaultModelsDir, "模型配置目录")
	pf.String("default-model", "", "默认模型名称，为空时取第一个加载的模型")
	pf.String("ort-lib", ocr.DefaultLibraryPath(), "onnxruntime 动态库路径")
	pf.Int("threads", 0, "单个会话的 intra-op 线程数，0 表示由 onnxruntime 决定")
	pf.String("log-level", defaultLogLevel, "日志级别: debug|info|warn|error")
	pf.String("metrics-file", "", "退出时写出 Prometheus 文本格式指标的文件")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.initLogger()
		return nil
	}

	root.AddCommand(
		newModelsCmd(a),
		newResolveCmd(a),
		newPredictCmd(a),
		newMatchCmd(),
	)
	return root
}

// resolveConfig 合并配置文件与命令行参数
func resolveConfig(cmd *cobra.Command, configPath string) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, fmt.Errorf("加载配置失败: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) || *dst == "" {
			*dst, _ = flags.GetString(name)
		}
	}
	str("models-dir", &cfg.ModelsDir)
	str("default-model", &cfg.DefaultModel)
	str("ort-lib", &cfg.OnnxRuntimeLibPath)
	str("log-level", &cfg.LogLevel)
	str("metrics-file", &cfg.MetricsFile)
	if flags.Changed("threads") || cfg.IntraOpThreads == 0 {
		cfg.IntraOpThreads, _ = flags.GetInt("threads")
	}
	if cfg.IntraOpThreads < 0 {
		return cfg, fmt.Errorf("线程数不能为负数: %d", cfg.IntraOpThreads)
	}
	return cfg, nil
}

// withRegistry 加载模型后执行 fn，结束时释放全部资源
func (a *app) withRegistry(fn func() error) (err error) {
	if err := a.open(); err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn()
}
