package server_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories(t *testing.T) {
	e := newEnv(t)
	user, token := e.newUser(t, "owner@example.com")
	_, otherToken := e.newUser(t, "other@example.com")

	resp := e.do(t, http.MethodGet, "/api/categories", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.body["categories"], 10)

	resp = e.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Frozen"}, bearer(token)...)
	require.Equal(t, http.StatusCreated, resp.status)
	created := resp.body["category"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, model.DefaultIcon, created["icon"])

	resp = e.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "  "}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = e.do(t, http.MethodPut, "/api/categories/"+id, map[string]any{"icon": "🧊"}, bearer(token)...)
	require.Equal(t, http.StatusOK, resp.status)
	updated := resp.body["category"].(map[string]any)
	assert.Equal(t, "Frozen", updated["name"])
	assert.Equal(t, "🧊", updated["icon"])

	resp = e.do(t, http.MethodPut, "/api/categories/"+id, map[string]any{"name": "Mine"}, bearer(otherToken)...)
	assert.Equal(t, http.StatusNotFound, resp.status)

	p := &model.Product{UserID: user.ID, CategoryID: id, ProductName: "Peas", Quantity: 20}
	require.NoError(t, e.store.CreateProduct(context.Background(), p))
	resp = e.do(t, http.MethodDelete, "/api/categories/"+id, nil, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, resp.status)

	require.NoError(t, e.store.DeleteProduct(context.Background(), user.ID, p.ID))
	resp = e.do(t, http.MethodDelete, "/api/categories/"+id, nil, bearer(token)...)
	assert.Equal(t, http.StatusOK, resp.status)

	resp = e.do(t, http.MethodDelete, "/api/categories/"+id, nil, bearer(token)...)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestCategories_DefaultsProtected(t *testing.T) {
	e := newEnv(t)
	user, token := e.newUser(t, "owner@example.com")
	def := e.defaultCategory(t, user.ID)
	require.True(t, def.IsDefault)

	resp := e.do(t, http.MethodPut, "/api/categories/"+def.ID, map[string]any{"name": "Renamed"}, bearer(token)...)
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Equal(t, "Cannot update default categories", resp.body["message"])

	resp = e.do(t, http.MethodDelete, "/api/categories/"+def.ID, nil, bearer(token)...)
	assert.Equal(t, http.StatusForbidden, resp.status)
}
