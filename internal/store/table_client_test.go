package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

func newTestTableClient(t *testing.T, h http.HandlerFunc) *TableClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewTableClient(TableClientConfig{BaseURL: srv.URL, APIKey: "anon-key"}, zap.NewNop())
}

func TestTableClient_Insert(t *testing.T) {
	var gotBody map[string]any
	c := newTestTableClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/blood_requests", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusCreated)
	})

	err := c.Insert(context.Background(), TableRequests, map[string]any{"id": "REQ-1"})
	require.NoError(t, err)
	assert.Equal(t, "REQ-1", gotBody["id"])
}

func TestTableClient_SelectEq(t *testing.T) {
	c := newTestTableClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/donors", r.URL.Path)
		assert.Equal(t, "eq.9876543210", r.URL.Query().Get("mobile"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"IBC-1","name":"Asha"}]`))
	})

	var out []rec
	require.NoError(t, c.SelectEq(context.Background(), TableDonors, "mobile", "9876543210", &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Asha", out[0].Name)
}

func TestTableClient_UpdateAndDelete(t *testing.T) {
	var calls []string
	c := newTestTableClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.UpdateByID(ctx, TableBanks, "BB-1", map[string]any{"stock": map[string]string{"O-": "HIGH"}}))
	require.NoError(t, c.DeleteByID(ctx, TableRequests, "REQ-1"))
	assert.Equal(t, []string{"PATCH eq.BB-1", "DELETE eq.REQ-1"}, calls)
}

func TestTableClient_SurfacesBackendError(t *testing.T) {
	c := newTestTableClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"column \"foo\" does not exist","code":"42703"}`))
	})

	err := c.Insert(context.Background(), TableDonors, map[string]any{"foo": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "foo" does not exist`)
	assert.NotErrorIs(t, err, domain.ErrDuplicate)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "42703", be.Code)
	assert.Equal(t, "insert into "+TableDonors, be.Op)
}

func TestTableClient_Unreachable(t *testing.T) {
	c := NewTableClient(TableClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())

	var out []map[string]any
	err := c.SelectAll(context.Background(), TableDonors, &out)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Zero(t, be.Status)
	assert.Contains(t, err.Error(), "failed to select from "+TableDonors)
}

func TestTableClient_UniqueViolation(t *testing.T) {
	c := newTestTableClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"duplicate key value violates unique constraint","code":"23505"}`))
	})

	err := c.Insert(context.Background(), TableCampRegistrations, map[string]any{"camp_id": "CAMP-1"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}
