package products

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/articlecode"
	"github.com/xuri/excelize/v2"
)

// Import columns, matched case-insensitively against the first row of the first sheet.
const (
	colArticle   = "article_code"
	colVariant   = "variant_code"
	colSize      = "size"
	colSizeGroup = "size_group"
	colPrice     = "price"
	colRetail    = "retail_price"
)

var requiredColumns = []string{colArticle, colVariant, colSize, colSizeGroup, colPrice}

// ImportRow is one parsed spreadsheet row. Row is the 1-based sheet row number.
type ImportRow struct {
	Row         int
	ArticleCode string
	VariantCode string
	Size        string
	SizeGroup   string
	Price       float64
	RetailPrice sql.NullFloat64
}

// ParseWorkbook reads product rows from an .xlsx workbook. Rows with missing or malformed values are
// returned as skipped; a missing header column fails the whole workbook.
func ParseWorkbook(r io.Reader) ([]ImportRow, []api.ImportSkip, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to read sheet %s", sheets[0])
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("sheet is empty")
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, nil, errors.Errorf("missing column %s", c)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var parsed []ImportRow
	skipped := []api.ImportSkip{}
	for i, row := range rows[1:] {
		n := i + 2
		if isBlank(row) {
			continue
		}
		ir := ImportRow{
			Row:         n,
			ArticleCode: cell(row, colArticle),
			VariantCode: cell(row, colVariant),
			Size:        cell(row, colSize),
			SizeGroup:   cell(row, colSizeGroup),
		}
		switch {
		case !articlecode.Valid(ir.ArticleCode):
			skipped = append(skipped, api.ImportSkip{Row: n, Reason: "missing article code"})
			continue
		case !articlecode.Valid(ir.VariantCode):
			skipped = append(skipped, api.ImportSkip{Row: n, Reason: "missing variant code"})
			continue
		case ir.Size == "" || ir.SizeGroup == "":
			skipped = append(skipped, api.ImportSkip{Row: n, Reason: "missing size or size group"})
			continue
		}
		price, err := parsePrice(cell(row, colPrice))
		if err != nil {
			skipped = append(skipped, api.ImportSkip{Row: n, Reason: "invalid price"})
			continue
		}
		ir.Price = price
		if v := cell(row, colRetail); v != "" {
			retail, err := parsePrice(v)
			if err != nil {
				skipped = append(skipped, api.ImportSkip{Row: n, Reason: "invalid retail price"})
				continue
			}
			ir.RetailPrice = sql.NullFloat64{Float64: retail, Valid: true}
		}
		ir.ArticleCode = articlecode.Normalize(ir.ArticleCode)
		ir.VariantCode = articlecode.Normalize(ir.VariantCode)
		parsed = append(parsed, ir)
	}
	return parsed, skipped, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parsePrice accepts both "12.50" and "12,50".
func parsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("negative price %s", s)
	}
	return f, nil
}

// atRow names the spreadsheet row in err. Application errors keep their status and reach the
// client with the row number.
func atRow(err error, row int) error {
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Prefix(fmt.Sprintf("row %d", row))
	}
	return errors.Wrapf(err, "row %d", row)
}

// ImportStore is what an import needs from the database.
type ImportStore interface {
	FindSize(ctx context.Context, brandID int64, groupName, sizeName string) (*models.Size, apperrors.Error)
	BeginTx(ctx context.Context) (db.Tx, apperrors.Error)
}

// Import upserts rows for brandID in one transaction: new tuples are created, existing ones get the
// row's prices. Rows whose size cannot be resolved are skipped. Any database failure rolls back
// the whole import.
func Import(ctx context.Context, store ImportStore, brandID int64, rows []ImportRow) (api.ImportRsp, error) {
	rsp := api.ImportRsp{Skipped: []api.ImportSkip{}}

	type sizeKey struct{ group, size string }
	resolved := map[sizeKey]int64{}
	sizeOf := make([]int64, len(rows))
	for i, row := range rows {
		k := sizeKey{strings.ToLower(row.SizeGroup), strings.ToLower(row.Size)}
		id, ok := resolved[k]
		if !ok {
			s, err := store.FindSize(ctx, brandID, row.SizeGroup, row.Size)
			if err != nil && !errors.Is(err, db.ErrSizeNotFound) {
				return rsp, err
			}
			if s != nil {
				id = s.ID
			}
			resolved[k] = id
		}
		if id == 0 {
			rsp.Skipped = append(rsp.Skipped, api.ImportSkip{
				Row:    row.Row,
				Reason: fmt.Sprintf("unknown size %s in group %s", row.Size, row.SizeGroup),
			})
		}
		sizeOf[i] = id
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return rsp, err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	for i, row := range rows {
		if sizeOf[i] == 0 {
			continue
		}
		id, created, err := MatchOrCreate(ctx, tx, row.ArticleCode, row.VariantCode, sizeOf[i], brandID, row.Price)
		if err != nil {
			return api.ImportRsp{}, atRow(err, row.Row)
		}
		if created && !row.RetailPrice.Valid {
			rsp.Created++
			continue
		}
		if err := tx.SetProductPrices(ctx, id, row.Price, row.RetailPrice); err != nil {
			return api.ImportRsp{}, atRow(err, row.Row)
		}
		if created {
			rsp.Created++
		} else {
			rsp.Updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return api.ImportRsp{}, apperrors.New("import failed; no products were changed").Err(err)
	}
	tx = nil
	return rsp, nil
}

func importProducts(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	brandID, err := httpx.QueryInt64(r, "brand", 0)
	if err != nil {
		return nil, err
	}
	if brandID == 0 {
		return nil, httpx.ErrInvalidRequest("brand parameter is required")
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, httpx.ErrUnableToParseReqData()
	}
	rows, skipped, err := ParseWorkbook(http.MaxBytesReader(nil, r.Body, config.Config().MaxImportBytes()))
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("unable to parse product workbook")
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	rsp, err := Import(ctx, db.DB(ctx), brandID, rows)
	if err != nil {
		return nil, err
	}
	rsp.Skipped = append(skipped, rsp.Skipped...)
	log.Ctx(ctx).Info().Int64("brand_id", brandID).Int("created", rsp.Created).Int("updated", rsp.Updated).
		Int("skipped", len(rsp.Skipped)).Msg("products imported")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}
