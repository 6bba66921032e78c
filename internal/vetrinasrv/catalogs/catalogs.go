// Package catalogs serves the seasonal catalogs of the brands and their publication workflow.
package catalogs

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/pkg/api"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidTransition = dberror.ErrAlreadyExists.Msg("catalog state transition not allowed")
	ErrInvalidDate       = dberror.ErrInvalidInput.Msg("dates must be formatted as YYYY-MM-DD")
	ErrInvalidPeriod     = dberror.ErrInvalidInput.Msg("period ends before it starts")
)

// transitions lists the states a catalog may move to from each state.
var transitions = map[string][]string{
	api.CatalogStateDraft:     {api.CatalogStatePublished},
	api.CatalogStatePublished: {api.CatalogStateArchived, api.CatalogStateDraft},
	api.CatalogStateArchived:  {},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// notes are written by admins and rendered as HTML by clients.
var policy = bluemonday.UGCPolicy()

func Sanitize(html string) string {
	return strings.TrimSpace(policy.Sanitize(html))
}

func toDate(s *string) (pgtype.Date, error) {
	if s == nil || *s == "" {
		return pgtype.Date{Status: pgtype.Null}, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return pgtype.Date{}, ErrInvalidDate
	}
	return pgtype.Date{Time: t, Status: pgtype.Present}, nil
}

func fromDate(d pgtype.Date) *string {
	if d.Status != pgtype.Present {
		return nil
	}
	s := d.Time.Format(dateLayout)
	return &s
}

func checkPeriod(start, end pgtype.Date, what string) error {
	if start.Status == pgtype.Present && end.Status == pgtype.Present && end.Time.Before(start.Time) {
		return ErrInvalidPeriod.Prefix(what)
	}
	return nil
}

// toModel converts a request into a catalog row, sanitizing the HTML fields.
func toModel(req api.CatalogReq) (*models.Catalog, error) {
	c := &models.Catalog{
		BrandID:   req.BrandID,
		Type:      strings.TrimSpace(req.Type),
		Season:    strings.TrimSpace(req.Season),
		Year:      req.Year,
		Note:      Sanitize(req.Note),
		Condition: Sanitize(req.Condition),
		CoverURL:  req.CoverURL,
	}
	var err error
	if c.DeliveryStart, err = toDate(req.DeliveryStart); err != nil {
		return nil, err
	}
	if c.DeliveryEnd, err = toDate(req.DeliveryEnd); err != nil {
		return nil, err
	}
	if c.OrderStart, err = toDate(req.OrderStart); err != nil {
		return nil, err
	}
	if c.OrderEnd, err = toDate(req.OrderEnd); err != nil {
		return nil, err
	}
	if err := checkPeriod(c.DeliveryStart, c.DeliveryEnd, "delivery"); err != nil {
		return nil, err
	}
	if err := checkPeriod(c.OrderStart, c.OrderEnd, "order"); err != nil {
		return nil, err
	}
	return c, nil
}

func toAPI(c *models.Catalog) api.Catalog {
	return api.Catalog{
		ID:            c.ID,
		BrandID:       c.BrandID,
		BrandName:     c.BrandName,
		Type:          c.Type,
		Season:        c.Season,
		Year:          c.Year,
		DeliveryStart: fromDate(c.DeliveryStart),
		DeliveryEnd:   fromDate(c.DeliveryEnd),
		OrderStart:    fromDate(c.OrderStart),
		OrderEnd:      fromDate(c.OrderEnd),
		Note:          c.Note,
		Condition:     c.Condition,
		CoverURL:      c.CoverURL,
		State:         c.State,
		CreatedAt:     c.CreatedAt,
	}
}

func title(c *models.Catalog) string {
	return fmt.Sprintf("%s %s %s %d", c.BrandName, c.Type, c.Season, c.Year)
}
