package products

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/internal/vetrinasrv/session"
	"github.com/vetrina/vetrina/internal/vetrinasrv/validation"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/articlecode"
)

const maxPageLimit = 200

var productHandlers = []httpx.ResponseHandlerParam{
	{
		Method:  http.MethodGet,
		Path:    "/",
		Handler: listProducts,
	},
	{
		Method:  http.MethodGet,
		Path:    "/search",
		Handler: searchProducts,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{id}",
		Handler: getProduct,
	},
}

var adminProductHandlers = []httpx.ResponseHandlerParam{
	{
		Method:  http.MethodPost,
		Path:    "/",
		Handler: createProduct,
	},
	{
		Method:  http.MethodPost,
		Path:    "/import",
		Handler: importProducts,
	},
	{
		Method:  http.MethodPut,
		Path:    "/{id}",
		Handler: updateProduct,
	},
	{
		Method:  http.MethodDelete,
		Path:    "/{id}",
		Handler: deleteProduct,
	},
}

func Router(r chi.Router) {
	for _, handler := range productHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
	r.Group(func(r chi.Router) {
		r.Use(session.RequireAdmin)
		for _, handler := range adminProductHandlers {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
}

func listProducts(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	q := r.URL.Query()
	page, err := httpx.QueryInt64(r, "page", 1)
	if err != nil {
		return nil, err
	}
	limit, err := httpx.QueryInt64(r, "limit", config.Config().PageSize)
	if err != nil {
		return nil, err
	}
	if limit == 0 || limit > maxPageLimit {
		limit = config.Config().PageSize
	}
	if page == 0 {
		page = 1
	}
	brandID, err := httpx.QueryInt64(r, "brand", 0)
	if err != nil {
		return nil, err
	}
	status := q.Get("status")
	if status != "" && status != api.ProductStatusActive && status != api.ProductStatusInactive {
		return nil, httpx.ErrInvalidRequest("invalid status parameter")
	}

	list, total, err := db.DB(ctx).ListProducts(ctx, models.ProductFilters{
		Search:  q.Get("search"),
		Status:  status,
		BrandID: brandID,
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	rsp := api.ProductListRsp{
		Products:   make([]api.Product, 0, len(list)),
		Pagination: api.NewPagination(total, page, limit),
	}
	for i := range list {
		rsp.Products = append(rsp.Products, toAPI(&list[i]))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func searchProducts(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	brandID, err := httpx.QueryInt64(r, "brand", 0)
	if err != nil {
		return nil, err
	}
	found, err := Search(ctx, db.DB(ctx), r.URL.Query().Get("q"), brandID, config.Config().SearchLimit)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.ProductSearchRsp{Products: found},
	}, nil
}

func getProduct(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := httpx.IdParam(r, "id", "product")
	if err != nil {
		return nil, err
	}
	p, err := db.DB(ctx).GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   toAPI(p),
	}, nil
}

func createProduct(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req api.ProductCreateReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	p := &models.Product{
		ArticleCode: articlecode.Normalize(req.ArticleCode),
		VariantCode: articlecode.Normalize(req.VariantCode),
		SizeID:      req.SizeID,
		BrandID:     req.BrandID,
		Price:       req.Price,
		Status:      req.Status,
	}
	if p.Status == "" {
		p.Status = api.ProductStatusActive
	}
	if req.RetailPrice != nil {
		p.RetailPrice = sql.NullFloat64{Float64: *req.RetailPrice, Valid: true}
	}
	if err := db.DB(ctx).CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("product_id", p.ID).Str("article_code", p.ArticleCode).Msg("product created")

	created, err := db.DB(ctx).GetProduct(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   fmt.Sprintf("/api/products/%d", p.ID),
		Response:   toAPI(created),
	}, nil
}

// updateProduct changes only the fields present in the body. A null retail_price clears it.
func updateProduct(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := httpx.IdParam(r, "id", "product")
	if err != nil {
		return nil, err
	}
	body, err := httpx.ReadRequestBody(r)
	if err != nil {
		return nil, err
	}
	u, err := parseProductUpdate(body)
	if err != nil {
		return nil, err
	}
	if u.Empty() {
		return nil, httpx.ErrInvalidRequest("no fields to update")
	}
	if err := db.DB(ctx).UpdateProduct(ctx, id, u); err != nil {
		return nil, err
	}
	p, err := db.DB(ctx).GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   toAPI(p),
	}, nil
}

func parseProductUpdate(body []byte) (models.ProductUpdate, error) {
	var u models.ProductUpdate
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return u, httpx.ErrUnableToParseReqData()
	}
	doc := gjson.ParseBytes(body)

	for _, f := range []struct {
		name string
		dst  **string
	}{{"article_code", &u.ArticleCode}, {"variant_code", &u.VariantCode}} {
		v := doc.Get(f.name)
		if !v.Exists() {
			continue
		}
		if v.Type != gjson.String || !articlecode.Valid(v.Str) {
			return u, httpx.ErrInvalidRequest("invalid value for " + f.name)
		}
		code := articlecode.Normalize(v.Str)
		*f.dst = &code
	}
	for _, f := range []struct {
		name string
		dst  **int64
	}{{"size_id", &u.SizeID}, {"brand_id", &u.BrandID}} {
		v := doc.Get(f.name)
		if !v.Exists() {
			continue
		}
		n, err := strconv.ParseInt(v.Raw, 10, 64)
		if v.Type != gjson.Number || err != nil || n <= 0 {
			return u, httpx.ErrInvalidRequest("invalid value for " + f.name)
		}
		*f.dst = &n
	}
	if v := doc.Get("price"); v.Exists() {
		if v.Type != gjson.Number || v.Float() < 0 {
			return u, httpx.ErrInvalidRequest("invalid value for price")
		}
		price := v.Float()
		u.Price = &price
	}
	if v := doc.Get("retail_price"); v.Exists() {
		switch {
		case v.Type == gjson.Null:
			u.ClearRetail = true
		case v.Type == gjson.Number && v.Float() >= 0:
			retail := v.Float()
			u.RetailPrice = &retail
		default:
			return u, httpx.ErrInvalidRequest("invalid value for retail_price")
		}
	}
	if v := doc.Get("status"); v.Exists() {
		if v.Str != api.ProductStatusActive && v.Str != api.ProductStatusInactive {
			return u, httpx.ErrInvalidRequest("status must be one of [active inactive]")
		}
		status := v.Str
		u.Status = &status
	}
	return u, nil
}

func deleteProduct(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := httpx.IdParam(r, "id", "product")
	if err != nil {
		return nil, err
	}
	if err := db.DB(ctx).DeleteProduct(ctx, id); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("product_id", id).Msg("product deleted")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.StatusRsp{Success: true},
	}, nil
}
