package captcha

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseSize 解析 "WxH" 形式的尺寸描述，各分量为整数
func ParseSize(size string) ([]int, error) {
	parts := strings.Split(size, "x")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSize, size)
		}
		dims = append(dims, n)
	}
	return dims, nil
}

// FormatSize 生成尺寸描述
func FormatSize(width, height int) string {
	return strconv.Itoa(width) + "x" + strconv.Itoa(height)
}

// roundToTen 四舍五入到最近的 10 的倍数，恰好居中时向上取整
func roundToTen(n int) int {
	return int(math.Floor(float64(n)/10+0.5)) * 10
}

// SizeFuzzyMatch 判断两个尺寸描述在各分量取整到 10 的倍数后是否一致。
// 无法解析的描述视为不匹配。
func SizeFuzzyMatch(source, target string) bool {
	src, err := ParseSize(source)
	if err != nil {
		return false
	}
	dst, err := ParseSize(target)
	if err != nil {
		return false
	}
	if len(src) != len(dst) {
		return false
	}
	for i := range src {
		if roundToTen(src[i]) != roundToTen(dst[i]) {
			return false
		}
	}
	return true
}
