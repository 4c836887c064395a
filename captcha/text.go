package captcha

import (
	"strings"

	"github.com/getcharzp/captcha-ocr/internal/ctc"
)

// assembleText 将稠密标签矩阵按字符集映射为文本，填充值与越界标签被忽略
func assembleText(dense [][]int, charset []string, blankFirst bool, splitChar string) []string {
	out := make([]string, len(dense))
	for i, row := range dense {
		symbols := make([]string, 0, len(row))
		for _, label := range row {
			if label == ctc.PadValue {
				continue
			}
			idx := label
			if blankFirst {
				idx--
			}
			if idx < 0 || idx >= len(charset) {
				continue
			}
			symbols = append(symbols, charset[idx])
		}
		out[i] = strings.Join(symbols, splitChar)
	}
	return out
}
