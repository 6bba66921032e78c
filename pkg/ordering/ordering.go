// Package ordering holds the draft order line model shared by the server and the order editor.
//
// A draft line groups one article/variant in one size group with a quantity per size. Before it can be
// persisted, a line is expanded into one Row per size of its group.
package ordering

import (
	"fmt"

	"github.com/vetrina/vetrina/pkg/articlecode"
	"github.com/vetrina/vetrina/pkg/sizes"
)

// DraftLine is an in-progress order line. SizesQuantities maps size id to quantity.
type DraftLine struct {
	ArticleCode     string          `json:"article_code"`
	VariantCode     string          `json:"variant_code"`
	SizeGroupID     int64           `json:"size_group_id"`
	SizeGroupName   string          `json:"size_group_name,omitempty"`
	SizesQuantities map[int64]int64 `json:"sizes_quantities"`
	Price           float64         `json:"price"`
	FromDatabase    bool            `json:"from_database,omitempty"`
}

// Row is one concrete sized product of an expanded line.
type Row struct {
	ArticleCode string  `json:"article_code"`
	VariantCode string  `json:"variant_code"`
	SizeID      int64   `json:"size_id"`
	SizeGroupID int64   `json:"size_group_id"`
	BrandID     int64   `json:"brand_id"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
}

// Skipped records a draft line that could not be expanded.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

const (
	ReasonMissingArticle   = "missing article code"
	ReasonMissingVariant   = "missing variant code"
	ReasonMissingSizeGroup = "missing size group"
	ReasonNoSizes          = "no sizes available"
)

// Check returns the reason line cannot be saved, or "" when it can.
func (l DraftLine) Check() string {
	switch {
	case !articlecode.Valid(l.ArticleCode):
		return ReasonMissingArticle
	case !articlecode.Valid(l.VariantCode):
		return ReasonMissingVariant
	case l.SizeGroupID <= 0:
		return ReasonMissingSizeGroup
	}
	return ""
}

// Quantity returns the total number of pieces on the line.
func (l DraftLine) Quantity() int64 {
	var n int64
	for _, q := range l.SizesQuantities {
		n += q
	}
	return n
}

// HasQuantities reports whether any size carries a non-zero quantity.
func (l DraftLine) HasQuantities() bool {
	for _, q := range l.SizesQuantities {
		if q != 0 {
			return true
		}
	}
	return false
}

// ZeroMatrix returns a quantity map with every size of the group set to zero.
func ZeroMatrix(groupSizes []sizes.Size) map[int64]int64 {
	m := make(map[int64]int64, len(groupSizes))
	for _, s := range groupSizes {
		m[s.ID] = 0
	}
	return m
}

// LineTotal is sum(quantities) * price.
func LineTotal(l DraftLine) float64 {
	return float64(l.Quantity()) * l.Price
}

// OrderTotal is the sum of quantity * price over rows.
func OrderTotal(rows []Row) float64 {
	var total float64
	for _, r := range rows {
		total += float64(r.Quantity) * r.Price
	}
	return total
}

// Expand turns draft lines into rows. Every size of a line's group yields one row, with quantity zero
// where the line has none; callers drop zero rows before persisting. Lines that fail Check, or whose
// group resolves to no sizes, are reported in the skipped list and produce no rows.
func Expand(lines []DraftLine, sizesByGroup map[int64][]sizes.Size) ([]Row, []Skipped) {
	var rows []Row
	var skipped []Skipped
	for i, l := range lines {
		if reason := l.Check(); reason != "" {
			skipped = append(skipped, Skipped{Index: i, Reason: reason})
			continue
		}
		groupSizes := sizesByGroup[l.SizeGroupID]
		if len(groupSizes) == 0 {
			skipped = append(skipped, Skipped{Index: i, Reason: ReasonNoSizes})
			continue
		}
		article := articlecode.Normalize(l.ArticleCode)
		variant := articlecode.Normalize(l.VariantCode)
		for _, s := range groupSizes {
			rows = append(rows, Row{
				ArticleCode: article,
				VariantCode: variant,
				SizeID:      s.ID,
				SizeGroupID: l.SizeGroupID,
				Quantity:    l.SizesQuantities[s.ID],
				Price:       l.Price,
			})
		}
	}
	return rows, skipped
}

// Ordered returns only rows with a positive quantity.
func Ordered(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Quantity > 0 {
			out = append(out, r)
		}
	}
	return out
}

// WithBrand sets the brand on every row.
func WithBrand(rows []Row, brandID int64) []Row {
	for i := range rows {
		rows[i].BrandID = brandID
	}
	return rows
}

// ValidateRow checks the identifying fields of a row posted by a client.
func ValidateRow(r Row) error {
	switch {
	case !articlecode.Valid(r.ArticleCode):
		return fmt.Errorf("row has %s", ReasonMissingArticle)
	case !articlecode.Valid(r.VariantCode):
		return fmt.Errorf("row has %s", ReasonMissingVariant)
	case r.SizeID <= 0:
		return fmt.Errorf("row has no size")
	case r.BrandID <= 0:
		return fmt.Errorf("row has no brand")
	case r.Quantity < 0:
		return fmt.Errorf("row has a negative quantity")
	case r.Price < 0:
		return fmt.Errorf("row has a negative price")
	}
	return nil
}
