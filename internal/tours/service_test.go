package tours_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tour/internal/cache"
	"github.com/noah-isme/backend-tour/internal/tours"
)

type fakeQueries struct {
	tours     map[uuid.UUID]tours.Tour
	listCalls int
	getCalls  int
}

func (f *fakeQueries) ListTours(context.Context) ([]tours.Tour, error) {
	f.listCalls++
	out := make([]tours.Tour, 0, len(f.tours))
	for _, t := range f.tours {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeQueries) GetTour(_ context.Context, id uuid.UUID) (tours.Tour, error) {
	f.getCalls++
	t, ok := f.tours[id]
	if !ok {
		return tours.Tour{}, tours.ErrNotFound
	}
	return t, nil
}

func newService(t *testing.T) (*tours.Service, *fakeQueries, uuid.UUID) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	id := uuid.New()
	queries := &fakeQueries{tours: map[uuid.UUID]tours.Tour{
		id: {ID: id.String(), Name: "Caldera Cruise", BasePrice: 95, Active: true},
	}}
	svc := &tours.Service{
		Queries: queries,
		Cache:   &cache.Cache{Client: client, TTL: time.Minute},
	}
	return svc, queries, id
}

func TestGetServesFromCacheOnSecondRead(t *testing.T) {
	svc, queries, id := newService(t)
	ctx := context.Background()

	first, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Caldera Cruise", first.Name)

	second, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, queries.getCalls)
}

func TestGetUnknownTour(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestCatalogAdapter(t *testing.T) {
	svc, _, id := newService(t)
	tour, err := svc.Tour(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, tour.ID)
	require.Equal(t, int64(95), tour.BasePrice)
	require.Equal(t, "Caldera Cruise", tour.Name)
}

func TestListHandler(t *testing.T) {
	svc, _, _ := newService(t)
	handler := &tours.Handler{Svc: svc}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []tours.Tour `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
}

func TestGetHandlerInvalidID(t *testing.T) {
	svc, _, _ := newService(t)
	handler := &tours.Handler{Svc: svc}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/nope", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()
	handler.Get(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
