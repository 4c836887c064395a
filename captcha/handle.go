package captcha

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/getcharzp/captcha-ocr/internal/ctc"
	"github.com/getcharzp/captcha-ocr/internal/metrics"
)

// Handle 对一个已加载推理会话的封装，按名称唯一标识
type Handle struct {
	conf    ModelConfig
	session Session
	width   int
	height  int

	mu        sync.RWMutex
	destroyed bool
}

// NewHandle 使用模型配置和已创建的会话构建句柄
func NewHandle(conf ModelConfig, session Session) (*Handle, error) {
	if session == nil {
		return nil, fmt.Errorf("模型 %s: 推理会话为空", conf.Name)
	}
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	dims, _ := ParseSize(conf.Size)
	return &Handle{
		conf:    conf,
		session: session,
		width:   dims[0],
		height:  dims[1],
	}, nil
}

// Name 模型名称
func (h *Handle) Name() string { return h.conf.Name }

// Size 尺寸描述，如 "64x64"
func (h *Handle) Size() string { return h.conf.Size }

// Type 模型类型
func (h *Handle) Type() ModelType { return h.conf.Type }

// Config 返回模型配置的副本
func (h *Handle) Config() ModelConfig {
	c := h.conf
	c.Charset = append([]string(nil), h.conf.Charset...)
	return c
}

// Destroyed 句柄是否已销毁
func (h *Handle) Destroyed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.destroyed
}

// Destroy 释放推理会话，重复调用无副作用
func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return nil
	}
	h.destroyed = true
	if err := h.session.Destroy(); err != nil {
		return fmt.Errorf("销毁模型 %s 失败: %w", h.conf.Name, err)
	}
	return nil
}

type predictOptions struct {
	splitChar string
}

// PredictOption 识别选项
type PredictOption func(*predictOptions)

// WithSplitChar 覆盖模型配置中的分隔符
func WithSplitChar(s string) PredictOption {
	return func(o *predictOptions) { o.splitChar = s }
}

// PredictBatch 识别一批图像，返回与输入顺序一致的文本
func (h *Handle) PredictBatch(images []image.Image, opts ...PredictOption) (texts []string, err error) {
	start := time.Now()
	defer func() { metrics.ObservePredict(h.conf.Name, len(images), time.Since(start), err) }()

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.destroyed {
		return nil, fmt.Errorf("模型 %s: %w", h.conf.Name, ErrDestroyed)
	}
	if len(images) == 0 {
		return nil, ErrEmptyBatch
	}

	po := predictOptions{splitChar: h.conf.SplitChar}
	for _, opt := range opts {
		opt(&po)
	}

	inputData, inputShape := preprocess(images, &h.conf, h.width, h.height)
	out, err := h.session.Run(inputData, inputShape)
	if err != nil {
		return nil, fmt.Errorf("模型 %s 推理失败: %w", h.conf.Name, err)
	}

	labels, err := h.decode(out)
	if err != nil {
		return nil, fmt.Errorf("模型 %s 解码失败: %w", h.conf.Name, err)
	}
	if len(labels) != len(images) {
		return nil, fmt.Errorf("模型 %s: 输出批次 %d 与输入批次 %d 不符", h.conf.Name, len(labels), len(images))
	}
	return assembleText(ctc.Dense(labels), h.conf.Charset, h.conf.BlankFirst, po.splitChar), nil
}

func (h *Handle) decode(out Output) ([][]int, error) {
	if out.Labels != nil {
		paths, err := ctc.ReshapeLabels(out.Labels, out.Shape, h.conf.TimeMajor)
		if err != nil {
			return nil, err
		}
		blank := len(h.conf.Charset)
		if h.conf.BlankFirst {
			blank = 0
		}
		return ctc.Collapse(paths, out.SeqLens, blank), nil
	}
	logits, err := ctc.Reshape(out.Data, out.Shape, h.conf.TimeMajor)
	if err != nil {
		return nil, err
	}
	if h.conf.Decoder == DecoderGreedy {
		return ctc.Greedy(logits, out.SeqLens, h.conf.ctcOptions()), nil
	}
	return ctc.BeamSearch(logits, out.SeqLens, h.conf.ctcOptions()), nil
}
