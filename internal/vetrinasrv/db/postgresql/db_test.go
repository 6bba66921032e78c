package postgresql

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		page, limit, want int64
	}{
		{0, 20, 0},
		{-3, 20, 0},
		{1, 20, 0},
		{3, 20, 40},
		{2, 0, 0},
		{math.MaxInt64/20 + 1, 20, math.MaxInt64 / 20 * 20},
		{math.MaxInt64/20 + 2, 20, math.MaxInt64},
		{math.MaxInt64, 20, math.MaxInt64},
		{math.MaxInt64, 1, math.MaxInt64 - 1},
	}
	for _, tt := range tests {
		got := offset(tt.page, tt.limit)
		assert.Equal(t, tt.want, got, "page %d limit %d", tt.page, tt.limit)
		assert.GreaterOrEqual(t, got, int64(0))
	}
}
