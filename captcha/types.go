package captcha

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getcharzp/captcha-ocr/internal/ctc"
)

var (
	// ErrDestroyed 句柄已销毁后仍被调用
	ErrDestroyed = errors.New("模型句柄已销毁")
	// ErrInvalidSize 尺寸描述无法解析
	ErrInvalidSize = errors.New("非法的尺寸描述")
	// ErrEmptyBatch 批次中没有图像
	ErrEmptyBatch = errors.New("图像批次为空")
)

// ModelType 模型类型
type ModelType string

// 解码器类型
const (
	DecoderBeam   = "beam"
	DecoderGreedy = "greedy"
)

// 输入张量布局
const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

// ModelConfig 单个模型的配置信息
type ModelConfig struct {
	Name          string    `json:"name" yaml:"name" toml:"name"`
	Size          string    `json:"size" yaml:"size" toml:"size"` // "WxH"
	Type          ModelType `json:"model_type" yaml:"model_type" toml:"model_type"`
	ModelPath     string    `json:"model_path" yaml:"model_path" toml:"model_path"`
	Charset       []string  `json:"charset" yaml:"charset" toml:"charset"`
	CharsetPath   string    `json:"charset_path" yaml:"charset_path" toml:"charset_path"`
	SplitChar     string    `json:"split_char" yaml:"split_char" toml:"split_char"`
	Channels      int       `json:"channels" yaml:"channels" toml:"channels"`
	Layout        string    `json:"layout" yaml:"layout" toml:"layout"`
	TimeMajor     bool      `json:"time_major" yaml:"time_major" toml:"time_major"` // 默认为 [B, T, C]；TF 导出的 logits 多为 [T, B, C]，需设为 true
	InputName     string    `json:"input_name" yaml:"input_name" toml:"input_name"`
	OutputName    string    `json:"output_name" yaml:"output_name" toml:"output_name"`
	SeqLenOutput  string    `json:"seq_len_output" yaml:"seq_len_output" toml:"seq_len_output"` // 可选，各样本有效时间步数
	Decoder       string    `json:"decoder" yaml:"decoder" toml:"decoder"`
	BeamWidth     int       `json:"beam_width" yaml:"beam_width" toml:"beam_width"`
	BlankFirst    bool      `json:"blank_first" yaml:"blank_first" toml:"blank_first"`
	MergeRepeated bool      `json:"merge_repeated" yaml:"merge_repeated" toml:"merge_repeated"`
}

// ApplyDefaults 为未设置的字段填充默认值
func (c *ModelConfig) ApplyDefaults() {
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.Layout == "" {
		c.Layout = LayoutNHWC
	}
	c.Layout = strings.ToUpper(c.Layout)
	if c.InputName == "" {
		c.InputName = "input"
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.Decoder == "" {
		c.Decoder = DecoderBeam
	}
	if c.BeamWidth <= 0 {
		c.BeamWidth = ctc.DefaultBeamWidth
	}
}

// Validate 检查配置是否可用于构建句柄
func (c *ModelConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("模型名称不能为空")
	}
	dims, err := ParseSize(c.Size)
	if err != nil {
		return fmt.Errorf("模型 %s: %w", c.Name, err)
	}
	if len(dims) != 2 || dims[0] <= 0 || dims[1] <= 0 {
		return fmt.Errorf("模型 %s: %w: %q 应为 WxH", c.Name, ErrInvalidSize, c.Size)
	}
	if len(c.Charset) == 0 {
		return fmt.Errorf("模型 %s: 字符集为空", c.Name)
	}
	if c.Channels != 1 && c.Channels != 3 {
		return fmt.Errorf("模型 %s: 不支持的通道数 %d", c.Name, c.Channels)
	}
	if c.Layout != LayoutNHWC && c.Layout != LayoutNCHW {
		return fmt.Errorf("模型 %s: 不支持的布局 %s", c.Name, c.Layout)
	}
	if c.Decoder != DecoderBeam && c.Decoder != DecoderGreedy {
		return fmt.Errorf("模型 %s: 不支持的解码器 %s", c.Name, c.Decoder)
	}
	return nil
}

func (c *ModelConfig) ctcOptions() ctc.Options {
	return ctc.Options{
		BeamWidth:     c.BeamWidth,
		BlankFirst:    c.BlankFirst,
		MergeRepeated: c.MergeRepeated,
	}
}

// Output 推理会话的原始输出。Data 为 logits；模型自带 argmax 时
// （如 dddd-trainer 导出的模型）输出逐帧类别 Labels，两者只取其一。
type Output struct {
	Data    []float32
	Labels  []int64
	Shape   []int64
	SeqLens []int // 为空时使用完整的时间步
}

// Session 已加载的推理会话
type Session interface {
	Run(input []float32, shape []int64) (Output, error)
	Destroy() error
}
