package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/ordering"
)

func (c *Client) SizeGroups(ctx context.Context, brandID int64) ([]api.SizeGroup, error) {
	var rsp api.SizeGroupsRsp
	if err := c.Do(ctx, api.ListSizeGroupsReq{BrandID: brandID}, &rsp); err != nil {
		return nil, err
	}
	return rsp.SizeGroups, nil
}

// Sizes returns the ordered sizes of a group. An unknown group yields an empty list.
func (c *Client) Sizes(ctx context.Context, sizeGroupID int64) ([]api.Size, error) {
	var rsp api.SizesRsp
	if err := c.Do(ctx, api.GetSizesReq{SizeGroupID: sizeGroupID}, &rsp); err != nil {
		return nil, err
	}
	return rsp.Sizes, nil
}

func (c *Client) SearchProducts(ctx context.Context, query string, brandID int64) ([]api.ProductCandidate, error) {
	var rsp api.ProductSearchRsp
	if err := c.Do(ctx, api.SearchProductsReq{Query: query, BrandID: brandID}, &rsp); err != nil {
		return nil, err
	}
	return rsp.Products, nil
}

func (c *Client) Order(ctx context.Context, orderID int64) (*api.Order, error) {
	var rsp api.Order
	if err := c.Do(ctx, api.GetOrderReq{OrderID: orderID}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) OrderLines(ctx context.Context, orderID int64) (*api.OrderLinesRsp, error) {
	var rsp api.OrderLinesRsp
	if err := c.Do(ctx, api.GetOrderLinesReq{OrderID: orderID}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// SaveOrderRows replaces the rows of an order.
func (c *Client) SaveOrderRows(ctx context.Context, orderID int64, rows []ordering.Row) (*api.SaveRsp, error) {
	var rsp api.SaveRsp
	if err := c.Do(ctx, api.SaveOrderProductsReq{OrderID: orderID, Products: rows}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// SaveOrderLines lets the server expand and save draft lines.
func (c *Client) SaveOrderLines(ctx context.Context, orderID, brandID int64, lines []ordering.DraftLine) (*api.SaveRsp, error) {
	var rsp api.SaveRsp
	if err := c.Do(ctx, api.SaveOrderLinesReq{OrderID: orderID, BrandID: brandID, Lines: lines}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) Orders(ctx context.Context) ([]api.Order, error) {
	var rsp api.OrderListRsp
	if err := c.Do(ctx, api.ListOrdersReq{}, &rsp); err != nil {
		return nil, err
	}
	return rsp.Orders, nil
}

// CreateOrder opens a draft order on a catalog.
func (c *Client) CreateOrder(ctx context.Context, catalogID int64) (*api.Order, error) {
	var rsp api.Order
	if err := c.Do(ctx, api.OrderCreateReq{CatalogID: catalogID}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) SetOrderStatus(ctx context.Context, orderID int64, status string) (*api.Order, error) {
	var rsp api.Order
	if err := c.Do(ctx, api.SetOrderStatusReq{OrderID: orderID, Status: status}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) Catalogs(ctx context.Context, state string) ([]api.Catalog, error) {
	var rsp api.CatalogListRsp
	if err := c.Do(ctx, api.ListCatalogsReq{State: state}, &rsp); err != nil {
		return nil, err
	}
	return rsp.Catalogs, nil
}

func (c *Client) Notifications(ctx context.Context, page int64) (*api.NotificationListRsp, error) {
	var rsp api.NotificationListRsp
	if err := c.Do(ctx, api.ListNotificationsReq{Page: page}, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var rsp api.CountRsp
	if err := c.Do(ctx, api.UnreadCountReq{}, &rsp); err != nil {
		return 0, err
	}
	return rsp.Count, nil
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.Do(ctx, api.MarkAllReadReq{}, nil)
}

func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.Do(ctx, api.MarkReadReq{ID: id}, nil)
}

// ImportProducts uploads an xlsx workbook for a brand.
func (c *Client) ImportProducts(ctx context.Context, brandID int64, workbook []byte) (*api.ImportRsp, error) {
	body, _, err := c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodPost,
		Path:        "/api/products/import",
		QueryParams: map[string]string{"brand": strconv.FormatInt(brandID, 10)},
		Body:        workbook,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	})
	if err != nil {
		return nil, err
	}
	var rsp api.ImportRsp
	if err := json.Unmarshal(body, &rsp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &rsp, nil
}

// DialNotifications opens the realtime notification stream for the session user.
func (c *Client) DialNotifications(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/notifications/ws"

	header := http.Header{}
	if s := c.config.GetSession(); s != "" {
		header.Set("Cookie", (&http.Cookie{Name: SessionCookie, Value: s}).String())
	}
	conn, rsp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if rsp != nil {
			return nil, &HTTPError{StatusCode: rsp.StatusCode, Message: fmt.Sprintf("websocket handshake failed: %s", rsp.Status)}
		}
		return nil, err
	}
	return conn, nil
}
