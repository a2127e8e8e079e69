package airtable_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/internal/airtable"
	"cardsync/internal/config"
	"cardsync/internal/domain"
)

func newTestClient(serverURL string) *airtable.Client {
	return airtable.NewClient(&config.AirtableConfig{
		APIKey:    "test-airtable-key",
		BaseID:    "appBase",
		TableName: "Contacts",
		BaseURL:   serverURL,
	}, nil)
}

func TestFetchAll_Pages(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/appBase/Contacts", r.URL.Path)
		assert.Equal(t, "Bearer test-airtable-key", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))

		switch r.URL.Query().Get("offset") {
		case "":
			_, _ = w.Write([]byte(`{"records":[{"id":"rec1","fields":{"Primary Email":"a@b.com"}}],"offset":"itrNext"}`))
		case "itrNext":
			_, _ = w.Write([]byte(`{"records":[{"id":"rec2","fields":{"Primary Email":"c@d.com","Name":"C"}}]}`))
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	}))
	defer server.Close()

	rows, err := newTestClient(server.URL).FetchAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, rows, 2)
	assert.Equal(t, "rec1", rows[0].ID)
	assert.Equal(t, "C", rows[1].Fields["Name"])
}

func TestFetchAll_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"type":"INVALID_PERMISSIONS"}}`))
	}))
	defer server.Close()

	rows, err := newTestClient(server.URL).FetchAll(context.Background())

	assert.Nil(t, rows)
	var storeErr *domain.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, http.StatusForbidden, storeErr.StatusCode)
	assert.Contains(t, storeErr.Body, "INVALID_PERMISSIONS")
}

func TestFetchAll_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).FetchAll(context.Background())
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body struct {
				Records []domain.CreatePayload `json:"records"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Records, 2)
			assert.Equal(t, "a@b.com", body.Records[0].Fields["Primary Email"])

			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"records":[]}`))
		}))

		err := newTestClient(server.URL).Create(context.Background(), []domain.CreatePayload{
			{Fields: map[string]any{"Primary Email": "a@b.com"}},
			{Fields: map[string]any{"Primary Email": "c@d.com"}},
		})
		server.Close()

		assert.NoError(t, err, "status %d", status)
	}
}

func TestUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body struct {
			Records []domain.UpdatePayload `json:"records"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Records, 1)
		assert.Equal(t, "rec1", body.Records[0].ID)
		assert.Equal(t, "New", body.Records[0].Fields["Name"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestClient(server.URL).Update(context.Background(), []domain.UpdatePayload{
		{ID: "rec1", Fields: map[string]any{"Primary Email": "a@b.com", "Name": "New"}},
	})
	assert.NoError(t, err)
}

func TestUpdate_CreatedIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := newTestClient(server.URL).Update(context.Background(), []domain.UpdatePayload{{ID: "rec1"}})

	var storeErr *domain.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "airtable.Update", storeErr.Op)
	assert.Equal(t, http.StatusCreated, storeErr.StatusCode)
}

func TestCreate_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"INVALID_VALUE_FOR_COLUMN"}}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Create(context.Background(), []domain.CreatePayload{{Fields: map[string]any{}}})

	var storeErr *domain.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, http.StatusUnprocessableEntity, storeErr.StatusCode)
}
