package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/getcharzp/captcha-ocr/captcha"
	"github.com/getcharzp/captcha-ocr/internal/onnx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	name      string
	destroyed *[]string
}

func (s *stubSession) Run([]float32, []int64) (captcha.Output, error) {
	return captcha.Output{}, nil
}

func (s *stubSession) Destroy() error {
	*s.destroyed = append(*s.destroyed, s.name)
	return nil
}

func stubFactory(destroyed *[]string, fail string) SessionFactory {
	return func(mc captcha.ModelConfig) (captcha.Session, error) {
		if mc.Name == fail {
			return nil, errors.New("load failed")
		}
		return &stubSession{name: mc.Name, destroyed: destroyed}, nil
	}
}

func writeModel(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
}

func modelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeModel(t, dir, "a.yaml", "size: 64x64\nmodel_type: T1\nmodel_path: a.onnx\ncharset: [x]\n")
	writeModel(t, dir, "b.json", `{"name":"b","size":"32x32","model_type":"T2","model_path":"b.onnx","charset":["y"]}`)
	writeModel(t, dir, "c.toml", "name = \"c\"\nsize = \"100x40\"\nmodel_type = \"T2\"\nmodel_path = \"c.onnx\"\ncharset = [\"z\"]\n")
	writeModel(t, dir, "README.md", "not a model")
	writeModel(t, dir, "a.onnx", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))
	return dir
}

func TestLoadDir(t *testing.T) {
	var destroyed []string
	reg, err := LoadDir(modelDir(t), stubFactory(&destroyed, ""), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "a", reg.DefaultName())
	assert.Equal(t, "b", reg.GetBySize("32x32", false).Name())
	assert.Equal(t, "c", reg.GetByTypeSize("99x41", "T2", false).Name())

	require.NoError(t, reg.Close())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, destroyed)
}

func TestLoadDir_DefaultModel(t *testing.T) {
	var destroyed []string
	reg, err := LoadDir(modelDir(t), stubFactory(&destroyed, ""), Options{DefaultModel: "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", reg.DefaultName())
	assert.Equal(t, 3, reg.Len())

	_, err = LoadDir(modelDir(t), stubFactory(&destroyed, ""), Options{DefaultModel: "missing"})
	assert.Error(t, err)
}

func TestLoadDir_FailureReleasesLoaded(t *testing.T) {
	var destroyed []string
	_, err := LoadDir(modelDir(t), stubFactory(&destroyed, "c"), Options{})
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, destroyed)
}

func TestLoadDir_DuplicateNameIgnored(t *testing.T) {
	dir := modelDir(t)
	writeModel(t, dir, "d.yaml", "name: b\nsize: 10x10\nmodel_path: d.onnx\ncharset: [q]\n")

	var destroyed []string
	reg, err := LoadDir(dir, stubFactory(&destroyed, ""), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "32x32", reg.GetByName("b", false).Size())
	assert.Equal(t, []string{"b"}, destroyed)
}

func TestLoadDir_Errors(t *testing.T) {
	var destroyed []string
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"), stubFactory(&destroyed, ""), Options{})
	assert.Error(t, err)

	_, err = LoadDir(t.TempDir(), stubFactory(&destroyed, ""), Options{})
	assert.Error(t, err)

	dir := t.TempDir()
	writeModel(t, dir, "bad.yaml", "size: \"64\"\nmodel_path: m.onnx\ncharset: [x]\n")
	_, err = LoadDir(dir, stubFactory(&destroyed, ""), Options{})
	assert.ErrorIs(t, err, captcha.ErrInvalidSize)
}

func TestONNXSessionFactory_RequiresEngine(t *testing.T) {
	factory := ONNXSessionFactory(&onnx.Config{})
	_, err := factory(captcha.ModelConfig{Name: "m", ModelPath: "m.onnx", SeqLenOutput: "seq_len"})
	assert.ErrorContains(t, err, "未初始化")
}
