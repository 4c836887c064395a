package captcha

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSession 记录调用并返回预设输出
type fakeSession struct {
	out        Output
	runErr     error
	destroyErr error

	runs      int
	destroys  int
	lastInput []float32
	lastShape []int64
}

func (s *fakeSession) Run(input []float32, shape []int64) (Output, error) {
	s.runs++
	s.lastInput = input
	s.lastShape = shape
	if s.runErr != nil {
		return Output{}, s.runErr
	}
	return s.out, nil
}

func (s *fakeSession) Destroy() error {
	s.destroys++
	return s.destroyErr
}

var errBoom = errors.New("boom")

// peakedLogits 生成 [B, T, C] 的 logits，每帧在指定类别上取得极大概率
func peakedLogits(classes int, paths ...[]int) Output {
	steps := len(paths[0])
	data := make([]float32, 0, len(paths)*steps*classes)
	for _, path := range paths {
		for _, c := range path {
			for k := 0; k < classes; k++ {
				p := 0.02 / float64(classes-1)
				if k == c {
					p = 0.98
				}
				data = append(data, float32(math.Log(p)))
			}
		}
	}
	return Output{Data: data, Shape: []int64{int64(len(paths)), int64(steps), int64(classes)}}
}

func newTestHandle(t *testing.T, name, size string, modelType ModelType) (*Handle, *fakeSession) {
	t.Helper()
	sess := &fakeSession{}
	h, err := NewHandle(ModelConfig{
		Name:    name,
		Size:    size,
		Type:    modelType,
		Charset: []string{"a", "b"},
	}, sess)
	require.NoError(t, err)
	return h, sess
}
