package notifications

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/session"
	"github.com/vetrina/vetrina/internal/vetrinasrv/validation"
	"github.com/vetrina/vetrina/pkg/api"
)

const createSchema = `{
	"type": "object",
	"required": ["type", "message"],
	"additionalProperties": false,
	"properties": {
		"userId": {"type": "integer", "minimum": 1},
		"type": {"enum": ["new_catalog", "order_status", "catalog_update", "system"]},
		"icon": {"type": "string", "maxLength": 64},
		"color": {"type": "string", "maxLength": 32},
		"brandId": {"type": ["integer", "null"], "minimum": 1},
		"brandName": {"type": ["string", "null"], "maxLength": 255},
		"message": {"type": "string", "minLength": 1, "maxLength": 2000}
	}
}`

var createSchemaCompiled = func() *jsonschema.Schema {
	s, err := validation.CompileSchema(createSchema)
	if err != nil {
		panic(err)
	}
	return s
}()

var notificationHandlers = []httpx.ResponseHandlerParam{
	{
		Method:  http.MethodGet,
		Path:    "/",
		Handler: listNotifications,
	},
	{
		Method:  http.MethodPost,
		Path:    "/",
		Handler: createNotification,
	},
	{
		Method:  http.MethodGet,
		Path:    "/unread-count",
		Handler: unreadCount,
	},
	{
		Method:  http.MethodPut,
		Path:    "/read-all",
		Handler: markAllRead,
	},
	{
		Method:  http.MethodPut,
		Path:    "/{id}/read",
		Handler: markRead,
	},
}

func Router(r chi.Router) {
	for _, handler := range notificationHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
}

func listNotifications(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	page, err := httpx.QueryInt64(r, "page", 1)
	if err != nil {
		return nil, err
	}
	if page == 0 {
		page = 1
	}
	limit := config.Config().NotificationsPage
	rows, total, err := db.DB(ctx).ListNotifications(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	rsp := api.NotificationListRsp{
		Notifications: make([]api.Notification, 0, len(rows)),
		Pagination:    api.NewPagination(total, page, limit),
	}
	for i := range rows {
		rsp.Notifications = append(rsp.Notifications, ToAPI(&rows[i]))
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// createNotification stores a notification for the caller, or for userId when the caller is an admin.
func createNotification(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	body, err := httpx.ReadRequestBody(r)
	if err != nil {
		return nil, err
	}
	if err := validation.Document(createSchemaCompiled, body); err != nil {
		return nil, err
	}
	var req api.NotificationCreateReq
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, httpx.ErrUnableToParseReqData()
	}

	userID := session.UserID(ctx)
	if req.UserID != nil && *req.UserID != userID {
		u, err := db.DB(ctx).GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if u.Role != api.RoleAdmin {
			return nil, httpx.ErrForbidden("only admins can notify other users")
		}
		userID = *req.UserID
	}

	d := FromContext(ctx)
	if d == nil {
		d = NewDispatcher(nil, 0)
	}
	n, err := d.Notify(ctx, userID, Event{
		Type:      req.Type,
		Icon:      req.Icon,
		Color:     req.Color,
		BrandID:   req.BrandID,
		BrandName: req.BrandName,
		Message:   req.Message,
	})
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   n,
	}, nil
}

func unreadCount(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	n, err := db.DB(ctx).UnreadCount(ctx)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.CountRsp{Count: n},
	}, nil
}

func markRead(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	id, err := httpx.IdParam(r, "id", "notification")
	if err != nil {
		return nil, err
	}
	if err := db.DB(ctx).MarkRead(ctx, id); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.StatusRsp{Success: true},
	}, nil
}

func markAllRead(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	n, err := db.DB(ctx).MarkAllRead(ctx)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   api.CountRsp{Count: n},
	}, nil
}
