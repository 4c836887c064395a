package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/getcharzp/captcha-ocr/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "onnxruntime_lib_path: lib/onnxruntime.so\nmodels_dir: /models\ndefault_model: m1\nintra_op_threads: 2\nlog_level: debug\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d, "lib/onnxruntime.so"), cfg.OnnxRuntimeLibPath)
	assert.Equal(t, "/models", cfg.ModelsDir)
	assert.Equal(t, "m1", cfg.DefaultModel)
	assert.Equal(t, 2, cfg.IntraOpThreads)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"models_dir":"/m","default_model":"m2","metrics_file":"out.prom"}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "/m", cfg.ModelsDir)
	assert.Equal(t, "m2", cfg.DefaultModel)
	assert.Equal(t, filepath.Join(d, "out.prom"), cfg.MetricsFile)
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "models_dir=\"/x\"\ndefault_model=\"m3\"\nintra_op_threads=4\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "/x", cfg.ModelsDir)
	assert.Equal(t, "m3", cfg.DefaultModel)
	assert.Equal(t, 4, cfg.IntraOpThreads)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load("/definitely/not/a/real/file-12345.yaml")
	assert.Error(t, err)

	d := t.TempDir()
	_, err = Load(writeTempFile(t, d, "cfg.txt", "not supported"))
	assert.Error(t, err)

	_, err = Load(writeTempFile(t, d, "bad.yaml", "models_dir: /m\n: broken\n"))
	assert.Error(t, err)

	_, err = Load(writeTempFile(t, d, "bad.json", `{ "models_dir": }`))
	assert.Error(t, err)

	_, err = Load(writeTempFile(t, d, "bad.toml", "models_dir\n"))
	assert.Error(t, err)
}

func TestLoadModel_InlineCharset(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "digits.yaml", `
size: 150x50
model_type: CNN5
model_path: digits.onnx
charset: ["0", "1", "2"]
split_char: ""
time_major: true
`)
	mc, err := LoadModel(p)
	require.NoError(t, err)
	assert.Equal(t, "digits", mc.Name)
	assert.Equal(t, "150x50", mc.Size)
	assert.Equal(t, captcha.ModelType("CNN5"), mc.Type)
	assert.Equal(t, filepath.Join(d, "digits.onnx"), mc.ModelPath)
	assert.Equal(t, []string{"0", "1", "2"}, mc.Charset)
	assert.True(t, mc.TimeMajor)
	assert.Equal(t, captcha.DecoderBeam, mc.Decoder)
	assert.Equal(t, "input", mc.InputName)
}

func TestLoadModel_CharsetFile(t *testing.T) {
	d := t.TempDir()
	writeTempFile(t, d, "dict.txt", "a\nb\nc\n")
	p := writeTempFile(t, d, "letters.toml", `
name = "letters"
size = "100x40"
model_type = "CNN3"
model_path = "/abs/letters.onnx"
charset_path = "dict.txt"
decoder = "greedy"
blank_first = true
`)
	mc, err := LoadModel(p)
	require.NoError(t, err)
	assert.Equal(t, "letters", mc.Name)
	assert.Equal(t, "/abs/letters.onnx", mc.ModelPath)
	assert.Equal(t, []string{"a", "b", "c"}, mc.Charset)
	assert.Equal(t, captcha.DecoderGreedy, mc.Decoder)
	assert.True(t, mc.BlankFirst)
}

func TestLoadModel_Errors(t *testing.T) {
	d := t.TempDir()

	_, err := LoadModel(writeTempFile(t, d, "nosize.yaml", "model_path: m.onnx\ncharset: [a]\n"))
	assert.ErrorIs(t, err, captcha.ErrInvalidSize)

	_, err = LoadModel(writeTempFile(t, d, "nopath.yaml", "size: 10x10\ncharset: [a]\n"))
	assert.Error(t, err)

	_, err = LoadModel(writeTempFile(t, d, "nodict.yaml", "size: 10x10\nmodel_path: m.onnx\ncharset_path: missing.txt\n"))
	assert.Error(t, err)
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, IsConfigFile("a.yaml"))
	assert.True(t, IsConfigFile("a.YML"))
	assert.True(t, IsConfigFile("a.json"))
	assert.True(t, IsConfigFile("a.toml"))
	assert.False(t, IsConfigFile("a.onnx"))
	assert.False(t, IsConfigFile("dict.txt"))
}
