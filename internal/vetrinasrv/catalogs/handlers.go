package catalogs

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/internal/vetrinasrv/notifications"
	"github.com/vetrina/vetrina/internal/vetrinasrv/session"
	"github.com/vetrina/vetrina/internal/vetrinasrv/validation"
	"github.com/vetrina/vetrina/pkg/api"
)

var catalogHandlers = []httpx.ResponseHandlerParam{
	{
		Method:  http.MethodGet,
		Path:    "/",
		Handler: listCatalogs,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{id}",
		Handler: getCatalog,
	},
}

var adminCatalogHandlers = []httpx.ResponseHandlerParam{
	{
		Method:  http.MethodPost,
		Path:    "/",
		Handler: createCatalog,
	},
	{
		Method:  http.MethodPut,
		Path:    "/{id}",
		Handler: updateCatalog,
	},
	{
		Method:  http.MethodPut,
		Path:    "/{id}/state",
		Handler: setCatalogState,
	},
}

func Router(r chi.Router) {
	r.Use(session.LoadRole)
	for _, handler := range catalogHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
	r.Group(func(r chi.Router) {
		r.Use(session.RequireAdmin)
		for _, handler := range adminCatalogHandlers {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
}

// listCatalogs returns published catalogs to clients. Admins see every catalog, optionally filtered by ?state.
func listCatalogs(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	states := []string{api.CatalogStatePublished}
	if session.IsAdmin(ctx) {
		states = nil
		if s := r.URL.Query().Get("state"); s != "" {
			if _, ok := transitions[s]; !ok {
				return nil, httpx.ErrInvalidRequest("invalid state parameter")
			}
			states = []string{s}
		}
	}
	list, err := db.DB(ctx).ListCatalogs(ctx, states)
	if err != nil {
		return nil, err
	}
	rsp := api.CatalogListRsp{Catalogs: make([]api.Catalog, 0, len(list))}
	for i := range list {
		rsp.Catalogs = append(rsp.Catalogs, toAPI(&list[i]))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func loadCatalog(r *http.Request) (*models.Catalog, error) {
	ctx := r.Context()
	id, err := httpx.IdParam(r, "id", "catalog")
	if err != nil {
		return nil, err
	}
	c, err := db.DB(ctx).GetCatalog(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func getCatalog(r *http.Request) (*httpx.Response, error) {
	c, err := loadCatalog(r)
	if err != nil {
		return nil, err
	}
	if c.State != api.CatalogStatePublished && !session.IsAdmin(r.Context()) {
		return nil, db.ErrCatalogNotFound
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   toAPI(c),
	}, nil
}

func readCatalog(r *http.Request) (*models.Catalog, error) {
	var req api.CatalogReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return toModel(req)
}

func createCatalog(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	c, err := readCatalog(r)
	if err != nil {
		return nil, err
	}
	if err := db.DB(ctx).CreateCatalog(ctx, c); err != nil {
		return nil, err
	}
	created, err := db.DB(ctx).GetCatalog(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("catalog_id", c.ID).Int64("brand_id", c.BrandID).Msg("catalog created")
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   fmt.Sprintf("/api/catalogs/%d", c.ID),
		Response:   toAPI(created),
	}, nil
}

// updateCatalog replaces a catalog's fields. Clients are told when a published catalog changes.
func updateCatalog(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	existing, err := loadCatalog(r)
	if err != nil {
		return nil, err
	}
	c, err := readCatalog(r)
	if err != nil {
		return nil, err
	}
	c.ID = existing.ID
	if err := db.DB(ctx).UpdateCatalog(ctx, c); err != nil {
		return nil, err
	}
	updated, err := db.DB(ctx).GetCatalog(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if updated.State == api.CatalogStatePublished {
		notifyClients(r, updated, api.NotificationCatalogUpdate, "Catalog updated: "+title(updated))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   toAPI(updated),
	}, nil
}

func setCatalogState(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	c, err := loadCatalog(r)
	if err != nil {
		return nil, err
	}
	var req api.CatalogStateReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !CanTransition(c.State, req.State) {
		return nil, ErrInvalidTransition.Suffix(c.State + " to " + req.State)
	}
	if err := db.DB(ctx).SetCatalogState(ctx, c.ID, c.State, req.State); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("catalog_id", c.ID).Str("from", c.State).Str("to", req.State).Msg("catalog state changed")
	c.State = req.State
	if c.State == api.CatalogStatePublished {
		notifyClients(r, c, api.NotificationNewCatalog, "New catalog: "+title(c))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   toAPI(c),
	}, nil
}

// notifyClients tells every client about c. A failure is logged and does not fail the request.
func notifyClients(r *http.Request, c *models.Catalog, typ, message string) {
	ctx := r.Context()
	d := notifications.FromContext(ctx)
	if d == nil {
		d = notifications.NewDispatcher(nil, 0)
	}
	brandID := c.BrandID
	ev := notifications.Event{
		Type:    typ,
		BrandID: &brandID,
		Message: message,
	}
	if c.BrandName != "" {
		name := c.BrandName
		ev.BrandName = &name
	}
	if _, err := d.NotifyClients(ctx, ev); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("catalog_id", c.ID).Msg("unable to notify clients")
	}
}
