// Package loader 在启动时从模型目录构建句柄注册表
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/getcharzp/captcha-ocr/captcha"
	"github.com/getcharzp/captcha-ocr/internal/config"
	"github.com/getcharzp/captcha-ocr/internal/onnx"
	"github.com/getcharzp/captcha-ocr/internal/util"
	"github.com/rs/zerolog"
	"github.com/up-zero/gotool/convertutil"
)

// SessionFactory 根据模型配置创建推理会话
type SessionFactory func(mc captcha.ModelConfig) (captcha.Session, error)

// Options 加载参数
type Options struct {
	DefaultModel string // 为空时第一个加载的模型作为默认模型
	Logger       zerolog.Logger
}

// ONNXSessionFactory 使用 onnxruntime 创建会话
func ONNXSessionFactory(oc *onnx.Config) SessionFactory {
	return func(mc captcha.ModelConfig) (captcha.Session, error) {
		sc := new(onnx.SessionConfig)
		_ = convertutil.CopyProperties(mc, sc)
		session, err := oc.NewSession(*sc)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// LoadDir 扫描目录中的模型配置文件（.yaml/.yml/.json/.toml），
// 按文件名顺序创建句柄并加入注册表。任一模型加载失败时释放已创建的句柄。
func LoadDir(dir string, factory SessionFactory, opts Options) (*captcha.Registry, error) {
	base, err := util.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("读取模型目录失败: %w", err)
	}

	logger := opts.Logger
	reg := captcha.NewRegistry(nil, captcha.WithLogger(logger))
	for _, e := range entries {
		if e.IsDir() || !config.IsConfigFile(e.Name()) {
			continue
		}
		h, err := loadHandle(filepath.Join(abs, e.Name()), factory)
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		if !reg.Add(h) {
			logger.Warn().Str("name", h.Name()).Str("file", e.Name()).Msg("模型名称重复，已忽略")
			_ = h.Destroy()
			continue
		}
		logger.Info().Str("name", h.Name()).Str("size", h.Size()).Str("type", string(h.Type())).Msg("模型加载完成")
	}

	if reg.Len() == 0 {
		return nil, fmt.Errorf("目录 %s 中没有模型配置", abs)
	}
	if opts.DefaultModel != "" {
		def := reg.GetByName(opts.DefaultModel, false)
		if def == nil {
			_ = reg.Close()
			return nil, fmt.Errorf("默认模型 %s 不存在", opts.DefaultModel)
		}
		reg.SetDefault(def)
	}
	return reg, nil
}

func loadHandle(path string, factory SessionFactory) (*captcha.Handle, error) {
	mc, err := config.LoadModel(path)
	if err != nil {
		return nil, err
	}
	session, err := factory(mc)
	if err != nil {
		return nil, fmt.Errorf("创建模型 %s 会话失败: %w", mc.Name, err)
	}
	h, err := captcha.NewHandle(mc, session)
	if err != nil {
		_ = session.Destroy()
		return nil, err
	}
	return h, nil
}
