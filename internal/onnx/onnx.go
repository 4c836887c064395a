package onnx

import (
	"fmt"
	"slices"
	"sync"

	"github.com/getcharzp/captcha-ocr/captcha"
	ort "github.com/getcharzp/onnxruntime_purego"
)

var (
	engineMu sync.Mutex
	engine   *ort.Engine
)

// Config onnxruntime 运行环境配置
type Config struct {
	OnnxRuntimeLibPath string
	IntraOpThreads     int

	OnnxEngine     *ort.Engine
	SessionOptions *ort.SessionOptions
}

// New 初始化 onnxruntime 引擎与会话选项，引擎在进程内只加载一次
func (c *Config) New() error {
	engineMu.Lock()
	defer engineMu.Unlock()
	if engine == nil {
		libPath := c.OnnxRuntimeLibPath
		if libPath == "" {
			libPath = ort.DefaultLibraryPath()
		}
		e, err := ort.NewEngine(libPath)
		if err != nil {
			return fmt.Errorf("初始化 onnxruntime 失败: %w", err)
		}
		engine = e
	}
	c.OnnxEngine = engine

	if c.SessionOptions != nil {
		return nil
	}
	opts, err := engine.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("创建会话选项失败: %w", err)
	}
	if c.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(int32(c.IntraOpThreads)); err != nil {
			opts.Destroy()
			return fmt.Errorf("设置线程数失败: %w", err)
		}
	}
	c.SessionOptions = opts
	return nil
}

// Destroy 释放会话选项，已创建的会话不受影响
func (c *Config) Destroy() {
	if c.SessionOptions != nil {
		c.SessionOptions.Destroy()
		c.SessionOptions = nil
	}
}

// Shutdown 释放 onnxruntime 引擎，须在所有会话销毁之后调用
func Shutdown() {
	engineMu.Lock()
	defer engineMu.Unlock()
	if engine != nil {
		engine.Destroy()
		engine = nil
	}
}

// SessionConfig 单个模型会话的配置
type SessionConfig struct {
	ModelPath    string
	InputName    string
	OutputName   string
	SeqLenOutput string // 可选，输出每个样本有效时间步数的节点
}

// Session 基于 onnxruntime 的推理会话
type Session struct {
	session    *ort.Session
	inputName  string
	outputName string
	seqLenName string
}

var _ captcha.Session = (*Session)(nil)

// NewSession 创建推理会话。配置的输入输出名称不存在且模型只有一个输入/输出时使用该名称。
func (c *Config) NewSession(sc SessionConfig) (*Session, error) {
	if c.OnnxEngine == nil {
		return nil, fmt.Errorf("onnxruntime 未初始化")
	}
	session, err := c.OnnxEngine.NewSession(sc.ModelPath, c.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 OCR 会话失败: %w", err)
	}

	s := &Session{session: session}
	if s.inputName, err = resolveName(sc.InputName, session.InputNames); err != nil {
		session.Destroy()
		return nil, fmt.Errorf("模型 %s 输入: %w", sc.ModelPath, err)
	}
	outputs := session.OutputNames
	if sc.SeqLenOutput != "" {
		outputs = slices.DeleteFunc(slices.Clone(outputs), func(n string) bool { return n == sc.SeqLenOutput })
	}
	if s.outputName, err = resolveName(sc.OutputName, outputs); err != nil {
		session.Destroy()
		return nil, fmt.Errorf("模型 %s 输出: %w", sc.ModelPath, err)
	}
	if s.seqLenName, err = resolveOptional(sc.SeqLenOutput, session.OutputNames); err != nil {
		session.Destroy()
		return nil, fmt.Errorf("模型 %s 序列长度输出: %w", sc.ModelPath, err)
	}
	return s, nil
}

// Run 执行一次推理。float32 输出作为 logits，int64 输出作为逐帧类别；
// 配置了序列长度节点时一并读取。返回的数据均为副本。
func (s *Session) Run(input []float32, shape []int64) (captcha.Output, error) {
	var out captcha.Output
	inputTensor, err := ort.NewTensor(shape, input)
	if err != nil {
		return out, err
	}
	defer inputTensor.Destroy()

	inputValues := map[string]*ort.Value{
		s.inputName: inputTensor,
	}
	outputValues, err := s.session.Run(inputValues)
	if err != nil {
		return out, fmt.Errorf("OCR 推理失败: %w", err)
	}
	defer func() {
		for _, v := range outputValues {
			v.Destroy()
		}
	}()

	outputValue, ok := outputValues[s.outputName]
	if !ok {
		return out, fmt.Errorf("缺少输出节点 %s", s.outputName)
	}
	outputShape, err := outputValue.GetShape()
	if err != nil {
		return out, fmt.Errorf("获取输出形状失败: %w", err)
	}
	out.Shape = slices.Clone(outputShape)

	if data, err := ort.GetTensorData[float32](outputValue); err == nil {
		out.Data = slices.Clone(data)
	} else if labels, lerr := ort.GetTensorData[int64](outputValue); lerr == nil {
		out.Labels = slices.Clone(labels)
	} else {
		return out, fmt.Errorf("获取 OCR 输出数据失败: %w", err)
	}

	if s.seqLenName != "" {
		if out.SeqLens, err = readSeqLens(outputValues[s.seqLenName]); err != nil {
			return out, fmt.Errorf("获取序列长度失败: %w", err)
		}
	}
	return out, nil
}

// Destroy 释放会话
func (s *Session) Destroy() error {
	if s.session == nil {
		return nil
	}
	s.session.Destroy()
	s.session = nil
	return nil
}

func readSeqLens(v *ort.Value) ([]int, error) {
	if v == nil {
		return nil, fmt.Errorf("输出中没有序列长度节点")
	}
	if data, err := ort.GetTensorData[int32](v); err == nil {
		return toInts(data), nil
	}
	data, err := ort.GetTensorData[int64](v)
	if err != nil {
		return nil, err
	}
	return toInts(data), nil
}

func toInts[T int32 | int64](data []T) []int {
	out := make([]int, len(data))
	for i, v := range data {
		out[i] = int(v)
	}
	return out
}

func resolveName(want string, available []string) (string, error) {
	if slices.Contains(available, want) {
		return want, nil
	}
	if len(available) == 1 {
		return available[0], nil
	}
	return "", fmt.Errorf("找不到节点 %q，可用节点: %v", want, available)
}

// resolveOptional 名称为空表示不使用该节点
func resolveOptional(want string, available []string) (string, error) {
	if want == "" || slices.Contains(available, want) {
		return want, nil
	}
	return "", fmt.Errorf("找不到节点 %q，可用节点: %v", want, available)
}
