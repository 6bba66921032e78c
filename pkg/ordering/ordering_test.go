package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetrina/vetrina/pkg/sizes"
)

const (
	sizeS int64 = 11
	sizeM int64 = 12
	sizeL int64 = 13
)

var letterGroup = map[int64][]sizes.Size{
	7: {{ID: sizeS, Name: "S"}, {ID: sizeM, Name: "M"}},
}

func TestExpandScenario(t *testing.T) {
	lines := []DraftLine{{
		ArticleCode:     "ab/12",
		VariantCode:     "001",
		SizeGroupID:     7,
		SizesQuantities: map[int64]int64{sizeS: 2, sizeM: 0},
		Price:           10,
	}}

	rows, skipped := Expand(lines, letterGroup)
	assert.Empty(t, skipped)
	require.Len(t, rows, 2)
	assert.Equal(t, "AB-12", rows[0].ArticleCode)
	assert.Equal(t, "001", rows[0].VariantCode)

	ordered := Ordered(rows)
	require.Len(t, ordered, 1)
	assert.Equal(t, sizeS, ordered[0].SizeID)
	assert.Equal(t, int64(2), ordered[0].Quantity)
	assert.Equal(t, 10.0, ordered[0].Price)
	assert.Equal(t, 20.0, OrderTotal(ordered))
}

func TestExpandEmitsEverySizeOfTheGroup(t *testing.T) {
	groups := map[int64][]sizes.Size{
		1: {{ID: sizeS, Name: "S"}, {ID: sizeM, Name: "M"}, {ID: sizeL, Name: "L"}},
	}
	// sparse matrix: only M was ever touched
	rows, _ := Expand([]DraftLine{{ArticleCode: "A", VariantCode: "B", SizeGroupID: 1,
		SizesQuantities: map[int64]int64{sizeM: 4}, Price: 1}}, groups)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{0, 4, 0}, []int64{rows[0].Quantity, rows[1].Quantity, rows[2].Quantity})
}

func TestExpandSkipsIncompleteLines(t *testing.T) {
	lines := []DraftLine{
		{ArticleCode: "", VariantCode: "001", SizeGroupID: 7},
		{ArticleCode: "A1", VariantCode: " / ", SizeGroupID: 7},
		{ArticleCode: "A1", VariantCode: "001"},
		{ArticleCode: "A1", VariantCode: "001", SizeGroupID: 99},
		{ArticleCode: "A1", VariantCode: "001", SizeGroupID: 7, SizesQuantities: map[int64]int64{sizeM: 1}},
	}
	rows, skipped := Expand(lines, letterGroup)
	assert.Len(t, rows, 2)
	assert.Equal(t, []Skipped{
		{Index: 0, Reason: ReasonMissingArticle},
		{Index: 1, Reason: ReasonMissingVariant},
		{Index: 2, Reason: ReasonMissingSizeGroup},
		{Index: 3, Reason: ReasonNoSizes},
	}, skipped)
}

func TestZeroQuantityLineProducesNoOrderedRows(t *testing.T) {
	rows, skipped := Expand([]DraftLine{{ArticleCode: "A", VariantCode: "B", SizeGroupID: 7,
		SizesQuantities: ZeroMatrix(letterGroup[7]), Price: 5}}, letterGroup)
	assert.Empty(t, skipped)
	assert.Len(t, rows, 2)
	assert.Empty(t, Ordered(rows))
}

func TestLineTotals(t *testing.T) {
	l := DraftLine{SizesQuantities: map[int64]int64{1: 2, 2: 3}, Price: 2.5}
	assert.Equal(t, int64(5), l.Quantity())
	assert.True(t, l.HasQuantities())
	assert.Equal(t, 12.5, LineTotal(l))

	l.Price = 4
	assert.Equal(t, 20.0, LineTotal(l))

	assert.False(t, DraftLine{SizesQuantities: map[int64]int64{1: 0}}.HasQuantities())
}

func TestValidateRow(t *testing.T) {
	ok := Row{ArticleCode: "A", VariantCode: "B", SizeID: 1, BrandID: 1, Quantity: 1, Price: 1}
	assert.NoError(t, ValidateRow(ok))

	bad := ok
	bad.SizeID = 0
	assert.Error(t, ValidateRow(bad))

	bad = ok
	bad.Quantity = -1
	assert.Error(t, ValidateRow(bad))

	bad = ok
	bad.ArticleCode = "..."
	assert.Error(t, ValidateRow(bad))
}

func TestWithBrand(t *testing.T) {
	rows := WithBrand([]Row{{}, {}}, 3)
	assert.Equal(t, int64(3), rows[0].BrandID)
	assert.Equal(t, int64(3), rows[1].BrandID)
}
