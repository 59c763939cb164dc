package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/identity"
	"github.com/kozaktomas/face-id/internal/metrics"
)

func seededStore(t *testing.T, names ...string) *database.Store {
	t.Helper()
	store := newTestStore(t)
	for i, name := range names {
		if _, err := store.Insert(context.Background(), name, identity.Embedding{float32(i), 0}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	return store
}

func TestIdentitiesHandler_List(t *testing.T) {
	h := NewIdentitiesHandler(seededStore(t, "Alice", "Bob", "Carol"), nil, nil)
	recorder := httptest.NewRecorder()

	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities?limit=2&offset=1", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp IdentitiesResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Total != 3 || resp.Limit != 2 || resp.Offset != 1 {
		t.Errorf("unexpected paging: %+v", resp)
	}
	if len(resp.Identities) != 2 || resp.Identities[0].Name != "Bob" || resp.Identities[1].ID != 3 {
		t.Errorf("unexpected identities: %+v", resp.Identities)
	}
	if strings.Contains(recorder.Body.String(), "embedding") {
		t.Error("embeddings must not be exposed")
	}
}

func TestIdentitiesHandler_ListPaging(t *testing.T) {
	h := NewIdentitiesHandler(seededStore(t, "Alice"), nil, nil)

	tests := []struct {
		query  string
		status int
		count  int
	}{
		{"", http.StatusOK, 1},
		{"?offset=10", http.StatusOK, 0},
		{"?limit=5000", http.StatusOK, 1},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"?offset=-1", http.StatusBadRequest, 0},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities"+tc.query, nil))

			assertStatusCode(t, recorder, tc.status)
			if tc.status != http.StatusOK {
				return
			}
			var resp IdentitiesResponse
			parseJSONResponse(t, recorder, &resp)
			if len(resp.Identities) != tc.count {
				t.Errorf("expected %d identities, got %d", tc.count, len(resp.Identities))
			}
			if resp.Limit > 1000 {
				t.Errorf("limit not capped: %d", resp.Limit)
			}
		})
	}
}

func TestIdentitiesHandler_Delete(t *testing.T) {
	store := seededStore(t, "Alice", "Bob")
	m := metrics.New()
	h := NewIdentitiesHandler(store, m, nil)

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/identities/1", nil),
		map[string]string{"id": "1"})
	recorder := httptest.NewRecorder()
	h.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if store.Count() != 1 {
		t.Errorf("expected 1 identity left, got %d", store.Count())
	}
	if got := testutil.ToFloat64(m.Identities); got != 1 {
		t.Errorf("expected identities gauge 1, got %v", got)
	}
}

func TestIdentitiesHandler_DeleteErrors(t *testing.T) {
	h := NewIdentitiesHandler(seededStore(t, "Alice"), nil, nil)

	tests := []struct {
		id      string
		status  int
		message string
	}{
		{"42", http.StatusNotFound, "identity not found"},
		{"abc", http.StatusBadRequest, "invalid identity id"},
		{"0", http.StatusBadRequest, "invalid identity id"},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/identities/"+tc.id, nil),
				map[string]string{"id": tc.id})
			recorder := httptest.NewRecorder()
			h.Delete(recorder, req)

			assertStatusCode(t, recorder, tc.status)
			assertJSONError(t, recorder, tc.message)
		})
	}
}
