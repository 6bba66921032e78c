package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Total: 0, Pages: 0, Current: 1}, NewPagination(0, 1, 20))
	assert.Equal(t, Pagination{Total: 41, Pages: 3, Current: 2}, NewPagination(41, 2, 20))
	assert.Equal(t, Pagination{Total: 40, Pages: 2, Current: 1}, NewPagination(40, 1, 20))
	assert.Equal(t, int64(5), NewPagination(5, 1, 0).Pages)
}

func TestOrderLineDraftLine(t *testing.T) {
	l := OrderLine{
		ArticleCode: "AB-12",
		VariantCode: "001",
		SizeGroupID: 3,
		Price:       10,
		SizesQuantities: []SizeQuantity{
			{SizeID: 1, SizeName: "S", Quantity: 2},
			{SizeID: 2, SizeName: "M", Quantity: 0},
		},
	}
	d := l.DraftLine()
	assert.True(t, d.FromDatabase)
	assert.Equal(t, map[int64]int64{1: 2, 2: 0}, d.SizesQuantities)
	assert.Equal(t, int64(3), d.SizeGroupID)
}
