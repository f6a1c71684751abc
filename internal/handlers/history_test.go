package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mailrag/internal/session"
)

func TestHistoryHandler_Get(t *testing.T) {
	sessions := session.NewManager(50)
	sessions.Add("s1", "user", "question")
	sessions.Add("s1", "assistant", "answer")
	handler := NewHistoryHandler(sessions)

	req := httptest.NewRequest(http.MethodGet, "/api/history?session_id=s1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionID != "s1" || len(resp.Turns) != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHistoryHandler_GetUnknownSession(t *testing.T) {
	handler := NewHistoryHandler(session.NewManager(50))

	req := httptest.NewRequest(http.MethodGet, "/api/history?session_id=nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Turns == nil || len(resp.Turns) != 0 {
		t.Errorf("turns = %v, want empty array", resp.Turns)
	}
}

func TestHistoryHandler_Delete(t *testing.T) {
	sessions := session.NewManager(50)
	sessions.Add("s1", "user", "question")
	handler := NewHistoryHandler(sessions)

	req := httptest.NewRequest(http.MethodDelete, "/api/history?session_id=s1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(sessions.History("s1", 0)) != 0 {
		t.Error("history should be cleared")
	}
}

func TestHistoryHandler_MissingSessionID(t *testing.T) {
	handler := NewHistoryHandler(session.NewManager(50))

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
