package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cultivation_backend/internal/catalog/repository"
	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	Catalog

	substrate func(string) (repository.Substrate, error)
	upsert    func([]repository.Substrate) (int, error)
}

func (s *stubCatalog) GetSubstrate(_ context.Context, id string) (repository.Substrate, error) {
	return s.substrate(id)
}

func (s *stubCatalog) UpsertSubstrates(_ context.Context, subs []repository.Substrate) (int, error) {
	return s.upsert(subs)
}

func newRouter(cat Catalog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(cat, validator.New())
	r := gin.New()
	r.GET("/catalog/substrates/:id", h.GetSubstrate)
	r.PUT("/admin/catalog/substrates", h.UpsertSubstrates)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetSubstrateReturnsRecipe(t *testing.T) {
	r := newRouter(&stubCatalog{substrate: func(id string) (repository.Substrate, error) {
		return repository.Substrate{
			SubstrateID: id,
			Name:        "Straw mix",
			IsActive:    true,
			Mediums:     []domain.MediumLine{{MediumID: "M1", MediumName: "Wheat straw", QtyG: 1200}},
		}, nil
	}})

	w := do(r, http.MethodGet, "/catalog/substrates/SUB-A", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got repository.Substrate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "SUB-A", got.SubstrateID)
	assert.Equal(t, 1200.0, got.Mediums[0].QtyG)
}

func TestGetSubstrateNotFound(t *testing.T) {
	r := newRouter(&stubCatalog{substrate: func(string) (repository.Substrate, error) {
		return repository.Substrate{}, apperr.NotFound("substrate not found")
	}})

	w := do(r, http.MethodGet, "/catalog/substrates/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpsertSubstratesKeepsLineOrder(t *testing.T) {
	var got []repository.Substrate
	r := newRouter(&stubCatalog{upsert: func(subs []repository.Substrate) (int, error) {
		got = subs
		return len(subs), nil
	}})

	body := `{"substrates":[{"substrateId":"SUB-A","name":"Straw mix","mediums":[
		{"mediumId":"M2","mediumName":"Sawdust","qtyG":300},
		{"mediumId":"M1","mediumName":"Wheat straw","qtyG":1200}]}]}`
	w := do(r, http.MethodPut, "/admin/catalog/substrates", body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"section":"substrates","count":1}`, w.Body.String())
	require.Len(t, got, 1)
	assert.True(t, got[0].IsActive)
	assert.Equal(t, "M2", got[0].Mediums[0].MediumID)
	assert.Equal(t, "M1", got[0].Mediums[1].MediumID)
}

func TestUpsertSubstratesValidation(t *testing.T) {
	r := newRouter(&stubCatalog{upsert: func([]repository.Substrate) (int, error) {
		t.Fatal("store must not be reached")
		return 0, nil
	}})

	w := do(r, http.MethodPut, "/admin/catalog/substrates", `{"substrates":[{"substrateId":"sub a","name":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/admin/catalog/substrates", `{"substrates":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
