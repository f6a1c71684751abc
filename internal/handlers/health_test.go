package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"mailrag/internal/vectorstore"
	"mailrag/internal/vectorstore/mocks"
)

func TestHealthHandler_Healthy(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)
	store.EXPECT().
		GetCollectionInfo(gomock.Any(), "emails").
		Return(&vectorstore.CollectionInfo{VectorSize: 4, PointsCount: 42, Status: "green"}, nil)

	handler := NewHealthHandler(store, "emails")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" || resp.Checks["vector_store"] != "ok" {
		t.Errorf("response = %+v", resp)
	}
	if resp.IndexedPoints != 42 {
		t.Errorf("indexed_points = %d, want 42", resp.IndexedPoints)
	}
}

func TestHealthHandler_VectorStoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockVectorStore(ctrl)
	store.EXPECT().
		GetCollectionInfo(gomock.Any(), "emails").
		Return(nil, errors.New("connection refused"))

	handler := NewHealthHandler(store, "emails")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" || len(resp.Issues) == 0 {
		t.Errorf("response = %+v", resp)
	}
}
