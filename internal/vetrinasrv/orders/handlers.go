package orders

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/internal/vetrinasrv/notifications"
	"github.com/vetrina/vetrina/internal/vetrinasrv/session"
	"github.com/vetrina/vetrina/internal/vetrinasrv/sizegroups"
	"github.com/vetrina/vetrina/internal/vetrinasrv/validation"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/ordering"
)

const reasonMalformedRow = "malformed row"

var orderHandlers = []httpx.ResponseHandlerParam{
	{
		Method:  http.MethodGet,
		Path:    "/",
		Handler: listOrders,
	},
	{
		Method:  http.MethodPost,
		Path:    "/",
		Handler: createOrder,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{orderId}",
		Handler: getOrder,
	},
	{
		Method:  http.MethodGet,
		Path:    "/{orderId}/products",
		Handler: getOrderProducts,
	},
	{
		Method:  http.MethodPost,
		Path:    "/{orderId}/products",
		Handler: saveOrderProducts,
	},
	{
		Method:  http.MethodPut,
		Path:    "/{orderId}/lines",
		Handler: saveOrderLines,
	},
	{
		Method:  http.MethodPut,
		Path:    "/{orderId}/status",
		Handler: setOrderStatus,
	},
}

func Router(r chi.Router) {
	r.Use(session.LoadRole)
	for _, handler := range orderHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
}

func reconciler(r *http.Request) *Reconciler {
	conn := db.DB(r.Context())
	return NewReconciler(conn, sizegroups.NewResolver(conn, config.Config().Locale))
}

// loadOrder returns the order of the request path if the session user may access it.
func loadOrder(r *http.Request) (*models.Order, error) {
	ctx := r.Context()
	orderID, err := httpx.IdParam(r, "orderId", "order")
	if err != nil {
		return nil, err
	}
	o, err := db.DB(ctx).GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != session.UserID(ctx) && !session.IsAdmin(ctx) {
		return nil, httpx.ErrForbidden("order belongs to another user")
	}
	return o, nil
}

func toAPI(o *models.Order) api.Order {
	return api.Order{
		ID:        o.ID,
		UserID:    o.UserID,
		CatalogID: o.CatalogID,
		BrandID:   o.BrandID,
		Status:    o.Status,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func listOrders(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	userID := session.UserID(ctx)
	if session.IsAdmin(ctx) {
		userID = 0
	}
	list, err := db.DB(ctx).ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	rsp := api.OrderListRsp{Orders: make([]api.Order, 0, len(list))}
	for i := range list {
		rsp.Orders = append(rsp.Orders, toAPI(&list[i]))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func createOrder(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	var req api.OrderCreateReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	o := &models.Order{CatalogID: req.CatalogID}
	if err := db.DB(ctx).CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	created, err := db.DB(ctx).GetOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("order_id", o.ID).Int64("catalog_id", o.CatalogID).Msg("order created")
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   fmt.Sprintf("/api/orders/%d", o.ID),
		Response:   toAPI(created),
	}, nil
}

func getOrder(r *http.Request) (*httpx.Response, error) {
	o, err := loadOrder(r)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   toAPI(o),
	}, nil
}

func getOrderProducts(r *http.Request) (*httpx.Response, error) {
	o, err := loadOrder(r)
	if err != nil {
		return nil, err
	}
	rsp, err := reconciler(r).LoadLines(r.Context(), o.ID)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// saveOrderProducts replaces the order's rows with the posted products. Elements that do not decode
// as a row are skipped like invalid rows.
func saveOrderProducts(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	o, err := loadOrder(r)
	if err != nil {
		return nil, err
	}
	body, err := httpx.ReadRequestBody(r)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, httpx.ErrUnableToParseReqData()
	}
	list := gjson.GetBytes(body, "products")
	if !list.IsArray() {
		return nil, httpx.ErrInvalidRequest("products must be an array")
	}
	elems := list.Array()
	if len(elems) == 0 {
		return nil, httpx.ErrInvalidRequest("products must not be empty")
	}

	var rows []ordering.Row
	var malformed []ordering.Skipped
	for i, e := range elems {
		var row ordering.Row
		if !e.IsObject() || json.UnmarshalFromString(e.Raw, &row) != nil {
			log.Ctx(ctx).Warn().Int64("order_id", o.ID).Int("row", i).Msg("skipping malformed order row")
			malformed = append(malformed, ordering.Skipped{Index: i, Reason: reasonMalformedRow})
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNothingToSave
	}

	rsp, err := reconciler(r).SaveRows(ctx, o.ID, rows)
	if err != nil {
		return nil, err
	}
	// indexes of the reconciler refer to the decoded rows, map them back to the posted array
	posted := make([]int, 0, len(rows))
	for i := range elems {
		if !isSkipped(malformed, i) {
			posted = append(posted, i)
		}
	}
	for i := range rsp.Skipped {
		rsp.Skipped[i].Index = posted[rsp.Skipped[i].Index]
	}
	rsp.Skipped = append(malformed, rsp.Skipped...)
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func isSkipped(skipped []ordering.Skipped, index int) bool {
	for _, s := range skipped {
		if s.Index == index {
			return true
		}
	}
	return false
}

func saveOrderLines(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	o, err := loadOrder(r)
	if err != nil {
		return nil, err
	}
	var req api.SaveOrderLinesReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if req.BrandID < 0 {
		return nil, httpx.ErrInvalidRequest("invalid brand_id")
	}
	rsp, err := reconciler(r).SaveLines(ctx, o.ID, req.BrandID, req.Lines)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// setOrderStatus lets a client submit its own order and an admin move any order between draft and
// submitted. The owner is notified of every change.
func setOrderStatus(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	o, err := loadOrder(r)
	if err != nil {
		return nil, err
	}
	var req api.OrderStatusReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !session.IsAdmin(ctx) && req.Status != api.OrderStatusSubmitted {
		return nil, httpx.ErrForbidden("only admins can reopen an order")
	}
	if req.Status == o.Status {
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response:   toAPI(o),
		}, nil
	}
	if err := db.DB(ctx).UpdateOrderStatus(ctx, o.ID, req.Status); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("order_id", o.ID).Str("from", o.Status).Str("to", req.Status).Msg("order status changed")
	o.Status = req.Status

	d := notifications.FromContext(ctx)
	if d == nil {
		d = notifications.NewDispatcher(nil, 0)
	}
	if _, err := d.Notify(ctx, o.UserID, notifications.OrderStatusEvent(o.ID, o.BrandID, o.Status)); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("order_id", o.ID).Msg("unable to notify order status")
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   toAPI(o),
	}, nil
}
