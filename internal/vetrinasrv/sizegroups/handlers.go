package sizegroups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/articlecode"
)

var sizeGroupHandlers = []httpx.ResponseHandlerParam{
	{
		Method:  http.MethodGet,
		Path:    "/",
		Handler: listSizeGroups,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{id}/sizes",
		Handler: getSizes,
	},
}

func Router(r chi.Router) {
	for _, handler := range sizeGroupHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
}

func listSizeGroups(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	brandID, err := httpx.QueryInt64(r, "brand", 0)
	if err != nil {
		return nil, err
	}
	groups, err := db.DB(ctx).ListSizeGroups(ctx, brandID)
	if err != nil {
		return nil, err
	}
	rsp := api.SizeGroupsRsp{SizeGroups: make([]api.SizeGroup, 0, len(groups))}
	for _, g := range groups {
		sg := api.SizeGroup{ID: g.ID, Name: g.Name}
		if g.BrandID.Valid {
			b := g.BrandID.Int64
			sg.BrandID = &b
		}
		rsp.SizeGroups = append(rsp.SizeGroups, sg)
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// getSizes returns the sorted sizes of a group. With article and variant query parameters each size
// carries the id of the matching product, if one exists for brand.
func getSizes(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	groupID, err := httpx.IdParam(r, "id", "size group")
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	resolver := NewResolver(db.DB(ctx), config.Config().Locale)

	var list []api.Size
	article, variant := articlecode.Normalize(q.Get("article")), articlecode.Normalize(q.Get("variant"))
	if article != "" && variant != "" {
		brandID, err := httpx.QueryInt64(r, "brand", 0)
		if err != nil {
			return nil, err
		}
		list, err = resolver.ResolveForProduct(ctx, groupID, article, variant, brandID)
		if err != nil {
			return nil, err
		}
	} else {
		list, err = resolver.Resolve(ctx, groupID)
		if err != nil {
			return nil, err
		}
	}

	rsp := api.SizesRsp{Sizes: list}
	if len(list) == 0 {
		rsp.Message = api.NoSizesAvailable
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}
