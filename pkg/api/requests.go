package api

import (
	"github.com/vetrina/vetrina/pkg/ordering"
)

// Requests implement RequestMethod so clients can resolve {placeholders} in the path from json fields.
// For GET requests the remaining fields are sent as query parameters.

type ListSizeGroupsReq struct {
	BrandID int64 `json:"brand,omitempty"`
}

func (r ListSizeGroupsReq) RequestMethod() (string, string) {
	return "GET", "/api/size-groups"
}

type GetSizesReq struct {
	SizeGroupID int64 `json:"id"`
}

func (r GetSizesReq) RequestMethod() (string, string) {
	return "GET", "/api/size-groups/{id}/sizes"
}

type SearchProductsReq struct {
	Query   string `json:"q"`
	BrandID int64  `json:"brand,omitempty"`
}

func (r SearchProductsReq) RequestMethod() (string, string) {
	return "GET", "/api/products/search"
}

type GetOrderReq struct {
	OrderID int64 `json:"orderId"`
}

func (r GetOrderReq) RequestMethod() (string, string) {
	return "GET", "/api/orders/{orderId}"
}

type GetOrderLinesReq struct {
	OrderID int64 `json:"orderId"`
}

func (r GetOrderLinesReq) RequestMethod() (string, string) {
	return "GET", "/api/orders/{orderId}/products"
}

type SaveOrderProductsReq struct {
	OrderID  int64          `json:"orderId"`
	Products []ordering.Row `json:"products"`
}

func (r SaveOrderProductsReq) RequestMethod() (string, string) {
	return "POST", "/api/orders/{orderId}/products"
}

type SaveOrderLinesReq struct {
	OrderID int64                `json:"orderId"`
	BrandID int64                `json:"brand_id"`
	Lines   []ordering.DraftLine `json:"lines"`
}

func (r SaveOrderLinesReq) RequestMethod() (string, string) {
	return "PUT", "/api/orders/{orderId}/lines"
}

type ListNotificationsReq struct {
	Page int64 `json:"page,omitempty"`
}

func (r ListNotificationsReq) RequestMethod() (string, string) {
	return "GET", "/api/notifications"
}

type UnreadCountReq struct{}

func (r UnreadCountReq) RequestMethod() (string, string) {
	return "GET", "/api/notifications/unread-count"
}

type MarkAllReadReq struct{}

func (r MarkAllReadReq) RequestMethod() (string, string) {
	return "PUT", "/api/notifications/read-all"
}

type ListOrdersReq struct{}

func (r ListOrdersReq) RequestMethod() (string, string) {
	return "GET", "/api/orders"
}

func (r OrderCreateReq) RequestMethod() (string, string) {
	return "POST", "/api/orders"
}

type SetOrderStatusReq struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

func (r SetOrderStatusReq) RequestMethod() (string, string) {
	return "PUT", "/api/orders/{orderId}/status"
}

type ListCatalogsReq struct {
	State string `json:"state,omitempty"`
}

func (r ListCatalogsReq) RequestMethod() (string, string) {
	return "GET", "/api/catalogs"
}

type MarkReadReq struct {
	ID int64 `json:"id"`
}

func (r MarkReadReq) RequestMethod() (string, string) {
	return "PUT", "/api/notifications/{id}/read"
}
