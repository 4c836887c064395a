// Package ctc 实现 CTC 输出的解码：前缀束搜索、贪心解码以及稠密矩阵填充。
package ctc

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

const (
	// PadValue 稠密矩阵中超出序列长度部分的填充值
	PadValue = -1
	// DefaultBeamWidth 默认束宽
	DefaultBeamWidth = 100
)

// Options 解码参数
type Options struct {
	BeamWidth     int
	BlankFirst    bool // true = 空白符为第 0 类，否则为最后一类
	MergeRepeated bool // 仅作用于束搜索的输出：合并相邻的相同标签
}

func (o Options) blank(numClasses int) int {
	if o.BlankFirst {
		return 0
	}
	return numClasses - 1
}

func (o Options) width() int {
	if o.BeamWidth <= 0 {
		return DefaultBeamWidth
	}
	return o.BeamWidth
}

// Reshape 将扁平的输出张量转为 [batch][time][classes]
func Reshape(data []float32, shape []int64, timeMajor bool) ([][][]float32, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("输出张量维度应为 3, 实际为 %d", len(shape))
	}
	d0, d1, classes := int(shape[0]), int(shape[1]), int(shape[2])
	if d0 < 0 || d1 < 0 || classes <= 0 {
		return nil, fmt.Errorf("非法的输出形状 %v", shape)
	}
	if len(data) != d0*d1*classes {
		return nil, fmt.Errorf("输出数据长度 %d 与形状 %v 不符", len(data), shape)
	}

	batch, steps := d0, d1
	if timeMajor {
		batch, steps = d1, d0
	}
	out := make([][][]float32, batch)
	for b := 0; b < batch; b++ {
		out[b] = make([][]float32, steps)
		for t := 0; t < steps; t++ {
			var offset int
			if timeMajor {
				offset = (t*batch + b) * classes
			} else {
				offset = (b*steps + t) * classes
			}
			out[b][t] = data[offset : offset+classes]
		}
	}
	return out, nil
}

// BeamSearch 对一个批次做 CTC 前缀束搜索，返回每个样本概率最大的标签序列
func BeamSearch(logits [][][]float32, seqLens []int, opts Options) [][]int {
	out := make([][]int, len(logits))
	for i, steps := range logits {
		out[i], _ = BeamSearchOne(steps, seqLen(seqLens, i, len(steps)), opts)
	}
	return out
}

type beam struct {
	labels []int
	key    string
	pb     float64 // 以空白结尾的对数概率
	pnb    float64 // 以非空白结尾的对数概率
}

func (b *beam) total() float64 { return logSumExp(b.pb, b.pnb) }

// BeamSearchOne 解码单个样本，返回标签序列及其对数概率
func BeamSearchOne(steps [][]float32, seqLen int, opts Options) ([]int, float64) {
	if seqLen > len(steps) {
		seqLen = len(steps)
	}
	if seqLen <= 0 || len(steps[0]) == 0 {
		return []int{}, 0
	}
	numClasses := len(steps[0])
	blank := opts.blank(numClasses)
	width := opts.width()

	beams := []*beam{{labels: []int{}, key: "", pb: 0, pnb: math.Inf(-1)}}
	for t := 0; t < seqLen; t++ {
		lp := logSoftmax(steps[t])
		candidates := topClasses(lp, width, blank)
		next := make(map[string]*beam, len(beams)*(len(candidates)+1))

		for _, b := range beams {
			total := b.total()

			// 不扩展前缀：追加空白，或重复最后一个标签
			stay := lookup(next, b.labels, b.key)
			stay.pb = logSumExp(stay.pb, total+float64(lp[blank]))
			last := -1
			if n := len(b.labels); n > 0 {
				last = b.labels[n-1]
				stay.pnb = logSumExp(stay.pnb, b.pnb+float64(lp[last]))
			}

			for _, c := range candidates {
				ext := make([]int, len(b.labels)+1)
				copy(ext, b.labels)
				ext[len(b.labels)] = c
				nb := lookup(next, ext, b.key+encodeLabel(c))
				if c == last {
					// 相同标签之间必须隔一个空白才能扩展
					nb.pnb = logSumExp(nb.pnb, b.pb+float64(lp[c]))
				} else {
					nb.pnb = logSumExp(nb.pnb, total+float64(lp[c]))
				}
			}
		}
		beams = prune(next, width)
	}

	best := beams[0]
	labels := best.labels
	if opts.MergeRepeated {
		labels = mergeRepeated(labels)
	}
	return labels, best.total()
}

// Greedy 最佳路径解码：逐帧取 argmax，合并相邻重复并去除空白
func Greedy(logits [][][]float32, seqLens []int, opts Options) [][]int {
	out := make([][]int, len(logits))
	for i, steps := range logits {
		n := seqLen(seqLens, i, len(steps))
		path := make([]int, 0, n)
		blank := 0
		for t := 0; t < n && len(steps[t]) > 0; t++ {
			blank = opts.blank(len(steps[t]))
			path = append(path, argmax(steps[t]))
		}
		out[i] = collapse(path, blank)
	}
	return out
}

// Collapse 对模型已输出的逐帧类别做 CTC 合并：合并相邻重复并去除空白
func Collapse(paths [][]int, seqLens []int, blank int) [][]int {
	out := make([][]int, len(paths))
	for i, path := range paths {
		out[i] = collapse(path[:seqLen(seqLens, i, len(path))], blank)
	}
	return out
}

// ReshapeLabels 将扁平的逐帧类别转为 [batch][time]，一维输出视为单个样本
func ReshapeLabels(data []int64, shape []int64, timeMajor bool) ([][]int, error) {
	var d0, d1 int
	switch len(shape) {
	case 1:
		d0, d1 = 1, int(shape[0])
		timeMajor = false
	case 2:
		d0, d1 = int(shape[0]), int(shape[1])
	default:
		return nil, fmt.Errorf("标签张量维度应为 1 或 2, 实际为 %d", len(shape))
	}
	if d0 < 0 || d1 < 0 || len(data) != d0*d1 {
		return nil, fmt.Errorf("标签数据长度 %d 与形状 %v 不符", len(data), shape)
	}

	batch, steps := d0, d1
	if timeMajor {
		batch, steps = d1, d0
	}
	out := make([][]int, batch)
	for b := 0; b < batch; b++ {
		row := make([]int, steps)
		for t := 0; t < steps; t++ {
			if timeMajor {
				row[t] = int(data[t*batch+b])
			} else {
				row[t] = int(data[b*steps+t])
			}
		}
		out[b] = row
	}
	return out, nil
}

func collapse(path []int, blank int) []int {
	labels := []int{}
	lastIdx := -1
	for _, idx := range path {
		if idx != blank && idx != lastIdx {
			labels = append(labels, idx)
		}
		lastIdx = idx
	}
	return labels
}

func argmax(stepData []float32) int {
	maxIdx := 0
	maxVal := float32(math.Inf(-1))
	for idx, val := range stepData {
		if val > maxVal {
			maxVal = val
			maxIdx = idx
		}
	}
	return maxIdx
}

// Dense 将变长序列转换为稠密矩阵，不足部分以 PadValue 填充
func Dense(seqs [][]int) [][]int {
	maxLen := 0
	for _, s := range seqs {
		maxLen = max(maxLen, len(s))
	}
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		row := make([]int, maxLen)
		n := copy(row, s)
		for j := n; j < maxLen; j++ {
			row[j] = PadValue
		}
		out[i] = row
	}
	return out
}

func seqLen(seqLens []int, i, steps int) int {
	if i < len(seqLens) && seqLens[i] < steps {
		return seqLens[i]
	}
	return steps
}

func lookup(m map[string]*beam, labels []int, key string) *beam {
	if b, ok := m[key]; ok {
		return b
	}
	b := &beam{labels: labels, key: key, pb: math.Inf(-1), pnb: math.Inf(-1)}
	m[key] = b
	return b
}

func encodeLabel(c int) string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(c))
	return string(buf[:])
}

func prune(m map[string]*beam, width int) []*beam {
	beams := make([]*beam, 0, len(m))
	for _, b := range m {
		beams = append(beams, b)
	}
	sort.Slice(beams, func(i, j int) bool {
		ti, tj := beams[i].total(), beams[j].total()
		if ti != tj {
			return ti > tj
		}
		return beams[i].key < beams[j].key
	})
	if len(beams) > width {
		beams = beams[:width]
	}
	return beams
}

// topClasses 返回当前帧得分最高的 k 个非空白类别
func topClasses(lp []float32, k, blank int) []int {
	idx := make([]int, 0, len(lp)-1)
	for c := range lp {
		if c != blank {
			idx = append(idx, c)
		}
	}
	if len(idx) <= k {
		return idx
	}
	sort.SliceStable(idx, func(i, j int) bool { return lp[idx[i]] > lp[idx[j]] })
	return idx[:k]
}

func mergeRepeated(labels []int) []int {
	out := make([]int, 0, len(labels))
	for i, l := range labels {
		if i > 0 && labels[i-1] == l {
			continue
		}
		out = append(out, l)
	}
	return out
}

func logSoftmax(x []float32) []float32 {
	m := float32(math.Inf(-1))
	for _, v := range x {
		m = max(m, v)
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v - m))
	}
	lse := float64(m) + math.Log(sum)
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(float64(v) - lse)
	}
	return out
}

func logSumExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}
