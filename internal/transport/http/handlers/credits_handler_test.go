package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/rules"
	pgrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/postgres"
	creditsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/credits"
)

type creditsStoreStub struct {
	users map[string]*model.User
}

func (s *creditsStoreStub) FindByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := s.users[email]
	if !ok {
		return model.User{}, pgrepo.ErrUserNotFound
	}
	return *u, nil
}

func (s *creditsStoreStub) DebitOne(_ context.Context, email string, src rules.DebitSource) (bool, error) {
	u, ok := s.users[email]
	if !ok {
		return false, nil
	}
	if src.Bucket == "free" && u.FreeCredits-u.CreditsUsed >= 1 {
		u.CreditsUsed++
		return true, nil
	}
	return false, nil
}

func (s *creditsStoreStub) ResetFreeCredits(_ context.Context, email string) error {
	u, ok := s.users[email]
	if !ok {
		return pgrepo.ErrUserNotFound
	}
	u.FreeCredits = 1
	u.CreditsUsed = 0
	return nil
}

func (s *creditsStoreStub) ListTransactions(_ context.Context, _ string) ([]model.Transaction, error) {
	return nil, nil
}

func newCreditsTestServer(t *testing.T, store *creditsStoreStub) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	handler := NewCreditsHandler(creditsvc.NewService(store, zap.NewNop()))
	r.Get("/credits/check/{email}", handler.Check)
	r.Post("/credits/use", handler.Use)
	r.Post("/credits/reset", handler.Reset)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func TestCheckEndpointUnknownUser(t *testing.T) {
	ts := newCreditsTestServer(t, &creditsStoreStub{users: map[string]*model.User{}})

	resp, err := http.Get(ts.URL + "/credits/check/nobody@example.com")
	if err != nil {
		t.Fatalf("get check: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var payload struct {
		Plan          string `json:"plan"`
		HasChatAccess bool   `json:"has_chat_access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Plan != model.PlanFree || payload.HasChatAccess {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestUseEndpointNoCreditsIsBusinessFailure(t *testing.T) {
	store := &creditsStoreStub{users: map[string]*model.User{
		"broke@example.com": {Email: "broke@example.com", Plan: model.PlanFree},
	}}
	ts := newCreditsTestServer(t, store)

	body := []byte(`{"email":"broke@example.com","feature":"interview"}`)
	resp, err := http.Post(ts.URL+"/credits/use", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post use: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("no-credits must not be a transport error, got %d", resp.StatusCode)
	}

	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Success || payload.Message == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestUseEndpointDebitsFreePool(t *testing.T) {
	store := &creditsStoreStub{users: map[string]*model.User{
		"trial@example.com": {Email: "trial@example.com", Plan: model.PlanFree, FreeCredits: 1},
	}}
	ts := newCreditsTestServer(t, store)

	body := []byte(`{"email":"trial@example.com","feature":"chat"}`)
	resp, err := http.Post(ts.URL+"/credits/use", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post use: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Success bool   `json:"success"`
		Source  string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Success || payload.Source != "free" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if store.users["trial@example.com"].CreditsUsed != 1 {
		t.Fatalf("free pool not debited")
	}
}
