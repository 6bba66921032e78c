// Package sizegroups resolves the sizes of a size group in display order.
package sizegroups

import (
	"context"

	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/pkg/sizes"
	"golang.org/x/text/language"
)

// Store is the size lookup the resolver needs.
type Store interface {
	ListSizes(ctx context.Context, sizeGroupID int64) ([]models.Size, apperrors.Error)
	ListSizesByGroups(ctx context.Context, sizeGroupIDs []int64) (map[int64][]models.Size, apperrors.Error)
	ListSizesForProduct(ctx context.Context, sizeGroupID int64, article, variant string, brandID int64) ([]models.Size, apperrors.Error)
}

type Resolver struct {
	store Store
	tag   language.Tag
}

// NewResolver returns a resolver whose alphabetic fallback collates by locale, e.g. "it" or "en".
// An unparsable locale falls back to Italian.
func NewResolver(store Store, locale string) *Resolver {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Italian
	}
	return &Resolver{store: store, tag: tag}
}

// Resolve returns the sizes of a group in display order. An unknown group yields an empty list.
func (r *Resolver) Resolve(ctx context.Context, sizeGroupID int64) ([]sizes.Size, error) {
	list, err := r.store.ListSizes(ctx, sizeGroupID)
	if err != nil {
		return nil, err
	}
	return r.sorted(list), nil
}

// ResolveForProduct is Resolve with the id of the existing product of article/variant for each size.
func (r *Resolver) ResolveForProduct(ctx context.Context, sizeGroupID int64, article, variant string, brandID int64) ([]sizes.Size, error) {
	list, err := r.store.ListSizesForProduct(ctx, sizeGroupID, article, variant, brandID)
	if err != nil {
		return nil, err
	}
	return r.sorted(list), nil
}

// ResolveGroups resolves several groups at once. Unknown groups are absent from the result.
func (r *Resolver) ResolveGroups(ctx context.Context, sizeGroupIDs []int64) (map[int64][]sizes.Size, error) {
	byGroup, err := r.store.ListSizesByGroups(ctx, sizeGroupIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]sizes.Size, len(byGroup))
	for id, list := range byGroup {
		out[id] = r.sorted(list)
	}
	return out, nil
}

func (r *Resolver) sorted(list []models.Size) []sizes.Size {
	out := make([]sizes.Size, 0, len(list))
	for _, s := range list {
		sz := sizes.Size{ID: s.ID, Name: s.Name}
		if s.ProductID.Valid {
			id := s.ProductID.Int64
			sz.ProductID = &id
		}
		out = append(out, sz)
	}
	sizes.NewSorter(r.tag).Sort(out)
	return out
}
