package sizegroups

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/pkg/api"
)

type fakeStore struct {
	db.DB_
	groups []models.SizeGroup
	sizes  map[int64][]models.Size
}

func (f *fakeStore) ListSizeGroups(ctx context.Context, brandID int64) ([]models.SizeGroup, apperrors.Error) {
	return f.groups, nil
}

func (f *fakeStore) ListSizes(ctx context.Context, sizeGroupID int64) ([]models.Size, apperrors.Error) {
	return append([]models.Size{}, f.sizes[sizeGroupID]...), nil
}

func (f *fakeStore) ListSizesByGroups(ctx context.Context, ids []int64) (map[int64][]models.Size, apperrors.Error) {
	out := map[int64][]models.Size{}
	for _, id := range ids {
		if s, ok := f.sizes[id]; ok {
			out[id] = append([]models.Size{}, s...)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSizesForProduct(ctx context.Context, sizeGroupID int64, article, variant string, brandID int64) ([]models.Size, apperrors.Error) {
	list := append([]models.Size{}, f.sizes[sizeGroupID]...)
	for i := range list {
		if list[i].Name == "M" && article == "AB-12" {
			list[i].ProductID = sql.NullInt64{Int64: 900, Valid: true}
		}
	}
	return list, nil
}

func newStore() *fakeStore {
	return &fakeStore{
		groups: []models.SizeGroup{
			{ID: 1, Name: "Mixed"},
			{ID: 2, Name: "Brand", BrandID: sql.NullInt64{Int64: 5, Valid: true}},
		},
		sizes: map[int64][]models.Size{
			1: {
				{ID: 10, SizeGroupID: 1, Name: "10"},
				{ID: 11, SizeGroupID: 1, Name: "M"},
				{ID: 12, SizeGroupID: 1, Name: "XS"},
				{ID: 13, SizeGroupID: 1, Name: "2"},
			},
		},
	}
}

func names(list []api.Size) []string {
	out := []string{}
	for _, s := range list {
		out = append(out, s.Name)
	}
	return out
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newStore(), "it")

	list, err := r.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"XS", "M", "2", "10"}, names(list))

	list, err = r.Resolve(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	list, err = r.ResolveForProduct(ctx, 1, "AB-12", "RED", 5)
	require.NoError(t, err)
	require.NotNil(t, list[1].ProductID)
	assert.Equal(t, int64(900), *list[1].ProductID)
	assert.Nil(t, list[0].ProductID)

	groups, err := r.ResolveGroups(ctx, []int64{1, 99})
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, []string{"XS", "M", "2", "10"}, names(groups[1]))
}

func TestNewResolverBadLocale(t *testing.T) {
	r := NewResolver(newStore(), "??")
	assert.Equal(t, "it", r.tag.String())
}

func serve(t *testing.T, store *fakeStore, url string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Route("/api/size-groups", Router)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	ctx := db.WithDB(log.Logger.WithContext(context.Background()), store)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func TestGetSizesHandler(t *testing.T) {
	w := serve(t, newStore(), "/api/size-groups/1/sizes")
	require.Equal(t, http.StatusOK, w.Code)
	var rsp api.SizesRsp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Equal(t, []string{"XS", "M", "2", "10"}, names(rsp.Sizes))
	assert.Empty(t, rsp.Message)

	w = serve(t, newStore(), "/api/size-groups/77/sizes")
	require.Equal(t, http.StatusOK, w.Code)
	rsp = api.SizesRsp{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Empty(t, rsp.Sizes)
	assert.Equal(t, api.NoSizesAvailable, rsp.Message)

	w = serve(t, newStore(), "/api/size-groups/1/sizes?article=ab%2012&variant=red&brand=5")
	require.Equal(t, http.StatusOK, w.Code)
	rsp = api.SizesRsp{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	require.NotNil(t, rsp.Sizes[1].ProductID)

	w = serve(t, newStore(), "/api/size-groups/abc/sizes")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSizeGroupsHandler(t *testing.T) {
	w := serve(t, newStore(), "/api/size-groups?brand=5")
	require.Equal(t, http.StatusOK, w.Code)
	var rsp api.SizeGroupsRsp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	require.Len(t, rsp.SizeGroups, 2)
	assert.Nil(t, rsp.SizeGroups[0].BrandID)
	assert.Equal(t, int64(5), *rsp.SizeGroups[1].BrandID)
}
