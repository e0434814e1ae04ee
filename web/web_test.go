package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	jsoncodec "github.com/loqor/objectstore/codec/json"
	"github.com/loqor/objectstore/idgen"
	"github.com/loqor/objectstore/kvstore/memory"
	"github.com/loqor/objectstore/object"
	"github.com/loqor/objectstore/web"
)

type widget struct {
	object.Base
}

func newWidget() object.StoredObject { return &widget{} }

var widgetSchema = &object.Schema{Properties: []string{"name"}}

func newTestHandler() (*web.Handler, *object.Storage) {
	registry := object.NewRegistry()
	registry.Register("widget", newWidget, widgetSchema)
	storage := object.NewStorage(memory.New(), jsoncodec.New(), idgen.New(0), registry, nil)
	return web.New(storage, jsoncodec.New()), storage
}

func TestPutCreatesThenGetReturnsIt(t *testing.T) {
	h, storage := newTestHandler()
	ctx := t.Context()

	oid := idgen.New(1).New()
	body := strings.NewReader(`{"name":"sprocket"}`)
	req := httptest.NewRequest(http.MethodPut, "/widget/"+oid, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "sprocket", got["name"])

	exists, err := storage.Has(ctx, "widget", oid)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestGetMissingReturns404(t *testing.T) {
	h, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/widget/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteThenGetReturns404(t *testing.T) {
	h, storage := newTestHandler()
	ctx := t.Context()

	obj, err := storage.Create(ctx, "widget", func(o object.StoredObject) error {
		return o.Base().SetProperty("name", "gizmo")
	})
	require.NoError(t, err)
	oid := obj.Base().OID()

	req := httptest.NewRequest(http.MethodDelete, "/widget/"+oid, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/widget/"+oid, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectionListingPages(t *testing.T) {
	h, storage := newTestHandler()
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		_, err := storage.Create(ctx, "widget", func(o object.StoredObject) error {
			return o.Base().SetProperty("name", "w")
		})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/widget?start=0&count=2", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Total int              `json:"total"`
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 5, got.Total)
	require.Len(t, got.Items, 2)
}
