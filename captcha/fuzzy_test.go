package captcha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeFuzzyMatch(t *testing.T) {
	cases := []struct {
		source, target string
		want           bool
	}{
		{"64x64", "64x64", true},
		{"61x128", "64x128", true},
		{"63x128", "65x128", false}, // 60 与 70
		{"59x128", "65x128", false},
		{"55x10", "64x14", true}, // 55 恰好居中，向上取整为 60
		{"54x10", "55x10", false},
		{"150x50", "146x53", true},
		{"64 x 64", "64x64", true},
		{"64x64x3", "64x64", false},
		{"abc", "64x64", false},
		{"64x64", "", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SizeFuzzyMatch(c.source, c.target), "%s vs %s", c.source, c.target)
	}
}

func TestSizeFuzzyMatch_EqualRoundingAlwaysMatches(t *testing.T) {
	for w1 := 0; w1 < 200; w1 += 3 {
		for w2 := 0; w2 < 200; w2 += 7 {
			want := roundToTen(w1) == roundToTen(w2)
			s1 := FormatSize(w1, 30)
			s2 := FormatSize(w2, 32)
			assert.Equal(t, want, SizeFuzzyMatch(s1, s2), "%s vs %s", s1, s2)
		}
	}
}

func TestRoundToTen(t *testing.T) {
	cases := map[int]int{0: 0, 4: 0, 5: 10, 14: 10, 15: 20, 63: 60, 65: 70, 128: 130, -4: 0, -5: 0, -6: -10}
	for in, want := range cases {
		assert.Equal(t, want, roundToTen(in), "roundToTen(%d)", in)
	}
}

func TestParseSize(t *testing.T) {
	dims, err := ParseSize("150x50")
	require.NoError(t, err)
	assert.Equal(t, []int{150, 50}, dims)

	_, err = ParseSize("150xx50")
	assert.ErrorIs(t, err, ErrInvalidSize)

	assert.Equal(t, "150x50", FormatSize(150, 50))
}
