package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getcharzp/captcha-ocr/captcha"
	"github.com/getcharzp/captcha-ocr/internal/util"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config 服务运行参数，零值表示未设置，由命令行参数或默认值补齐
type Config struct {
	OnnxRuntimeLibPath string `json:"onnxruntime_lib_path" yaml:"onnxruntime_lib_path" toml:"onnxruntime_lib_path"`
	ModelsDir          string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel       string `json:"default_model" yaml:"default_model" toml:"default_model"`
	IntraOpThreads     int    `json:"intra_op_threads" yaml:"intra_op_threads" toml:"intra_op_threads"`
	LogLevel           string `json:"log_level" yaml:"log_level" toml:"log_level"`
	MetricsFile        string `json:"metrics_file" yaml:"metrics_file" toml:"metrics_file"`
}

// IsConfigFile 判断扩展名是否为支持的配置格式
func IsConfigFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// decodeFile 按扩展名解析 .yaml/.yml、.json、.toml 文件
func decodeFile(path string, v any) error {
	if path == "" {
		return fmt.Errorf("配置文件路径为空")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("不支持的配置文件格式: %s", ext)
	}
}

// Load 读取服务配置，相对路径以配置文件所在目录为基准
func Load(path string) (Config, error) {
	var cfg Config
	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	dir := filepath.Dir(path)
	cfg.OnnxRuntimeLibPath = util.ResolvePath(cfg.OnnxRuntimeLibPath, dir)
	cfg.ModelsDir = util.ResolvePath(cfg.ModelsDir, dir)
	cfg.MetricsFile = util.ResolvePath(cfg.MetricsFile, dir)
	return cfg, nil
}

// LoadModel 读取单个模型配置。未指定名称时使用文件名；
// 未内联字符集时从 charset_path 加载。
func LoadModel(path string) (captcha.ModelConfig, error) {
	var mc captcha.ModelConfig
	if err := decodeFile(path, &mc); err != nil {
		return mc, fmt.Errorf("解析模型配置 %s 失败: %w", path, err)
	}
	dir := filepath.Dir(path)
	if mc.Name == "" {
		mc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var err error
	if mc.ModelPath, err = util.ExpandHome(util.ResolvePath(mc.ModelPath, dir)); err != nil {
		return mc, err
	}
	if mc.CharsetPath, err = util.ExpandHome(util.ResolvePath(mc.CharsetPath, dir)); err != nil {
		return mc, err
	}
	if len(mc.Charset) == 0 && mc.CharsetPath != "" {
		dict, err := util.LoadDict(mc.CharsetPath)
		if err != nil {
			return mc, fmt.Errorf("加载字符集失败: %w", err)
		}
		mc.Charset = dict
	}

	mc.ApplyDefaults()
	if err := mc.Validate(); err != nil {
		return mc, err
	}
	if mc.ModelPath == "" {
		return mc, fmt.Errorf("模型 %s: 未指定 model_path", mc.Name)
	}
	return mc, nil
}
