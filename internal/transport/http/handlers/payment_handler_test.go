package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/infra/phonepe"
	memrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/memory"
	billingsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/billing"
)

type gatewayStub struct {
	payResp phonepe.PayResponse
	status  phonepe.StatusResponse
}

func (g *gatewayStub) Pay(_ context.Context, _ phonepe.PayRequest) (phonepe.PayResponse, error) {
	return g.payResp, nil
}

func (g *gatewayStub) OrderStatus(_ context.Context, _ string) (phonepe.StatusResponse, error) {
	return g.status, nil
}

type userStoreStub struct {
	applyCount int
}

func (s *userStoreStub) ApplyGrant(_ context.Context, _ string, _ model.Grant, _ model.Transaction, _ time.Time) error {
	s.applyCount++
	return nil
}

func newPaymentTestServer(t *testing.T, gateway *gatewayStub, users *userStoreStub) (*httptest.Server, *memrepo.IntentRepo, *billingsvc.Service) {
	t.Helper()

	intents := memrepo.NewIntentRepo()
	billing := billingsvc.NewService(intents, gateway, users, billingsvc.Config{
		CreditPriceINR:     99,
		ProDayPriceINR:     20,
		ProHourPriceINR:    100,
		ChatBonusPerCredit: 12,
		IntentRetention:    time.Minute,
		CallbackBaseURL:    "http://localhost:8080",
		WebhookUsername:    "hook",
		WebhookPassword:    "pass",
	}, zap.NewNop())

	r := chi.NewRouter()
	handler := NewPaymentHandler(billing, nil)
	r.Post("/phonepe/initiate", handler.Initiate)
	r.Post("/phonepe/webhook", handler.Webhook)
	r.Get("/phonepe/status/{orderID}", handler.Status)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, intents, billing
}

func TestInitiateEndpoint(t *testing.T) {
	gateway := &gatewayStub{payResp: phonepe.PayResponse{RedirectURL: "https://pay.example/checkout"}}
	ts, intents, _ := newPaymentTestServer(t, gateway, &userStoreStub{})

	body := []byte(`{"email":"buyer@example.com","plan":"credits","credits":2}`)
	resp, err := http.Post(ts.URL+"/phonepe/initiate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post initiate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var payload struct {
		Success     bool   `json:"success"`
		OrderID     string `json:"order_id"`
		RedirectURL string `json:"redirect_url"`
		AmountINR   int64  `json:"amount_inr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success || payload.AmountINR != 198 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if _, err := intents.Get(payload.OrderID); err != nil {
		t.Fatalf("intent not recorded: %v", err)
	}
}

func TestInitiateEndpointRejectsUnknownPlan(t *testing.T) {
	ts, _, _ := newPaymentTestServer(t, &gatewayStub{}, &userStoreStub{})

	resp, err := http.Post(ts.URL+"/phonepe/initiate", "application/json",
		bytes.NewReader([]byte(`{"email":"buyer@example.com","plan":"lifetime"}`)))
	if err != nil {
		t.Fatalf("post initiate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebhookEndpointRejectsForgedSignature(t *testing.T) {
	gateway := &gatewayStub{payResp: phonepe.PayResponse{RedirectURL: "https://pay.example"}}
	users := &userStoreStub{}
	ts, intents, billing := newPaymentTestServer(t, gateway, users)

	result, err := billing.Initiate(context.Background(), "buyer@example.com", model.PlanRequest{
		Type: "credits", Credits: 1,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	body := []byte(`{"type":"CHECKOUT_ORDER_COMPLETED","payload":{"orderId":"` + result.OrderID + `","state":"COMPLETED"}}`)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/phonepe/webhook", bytes.NewReader(body))
	req.Header.Set("Authorization", "forged")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if users.applyCount != 0 {
		t.Fatalf("forged webhook applied a grant")
	}
	intent, err := intents.Get(result.OrderID)
	if err != nil || intent.Status != model.IntentPending {
		t.Fatalf("forged webhook mutated intent: %+v err=%v", intent, err)
	}
}

func TestWebhookEndpointConfirmsOrder(t *testing.T) {
	gateway := &gatewayStub{payResp: phonepe.PayResponse{RedirectURL: "https://pay.example"}}
	users := &userStoreStub{}
	ts, _, billing := newPaymentTestServer(t, gateway, users)

	result, err := billing.Initiate(context.Background(), "buyer@example.com", model.PlanRequest{
		Type: "credits", Credits: 1,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	body := []byte(`{"type":"CHECKOUT_ORDER_COMPLETED","payload":{"orderId":"` + result.OrderID + `","state":"COMPLETED"}}`)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/phonepe/webhook", bytes.NewReader(body))
	req.Header.Set("Authorization", phonepe.CallbackAuthHeader("hook", "pass"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if users.applyCount != 1 {
		t.Fatalf("grant applied %d times, want 1", users.applyCount)
	}
}

func TestWebhookEndpointUnknownOrder(t *testing.T) {
	ts, _, _ := newPaymentTestServer(t, &gatewayStub{}, &userStoreStub{})

	body := []byte(`{"type":"CHECKOUT_ORDER_COMPLETED","payload":{"orderId":"missing","state":"COMPLETED"}}`)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/phonepe/webhook", bytes.NewReader(body))
	req.Header.Set("Authorization", phonepe.CallbackAuthHeader("hook", "pass"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	gateway := &gatewayStub{
		payResp: phonepe.PayResponse{RedirectURL: "https://pay.example"},
		status:  phonepe.StatusResponse{State: phonepe.StateCompleted},
	}
	users := &userStoreStub{}
	ts, _, billing := newPaymentTestServer(t, gateway, users)

	result, err := billing.Initiate(context.Background(), "buyer@example.com", model.PlanRequest{
		Type: "hours", Hours: 1,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	resp, err := http.Get(ts.URL + "/phonepe/status/" + result.OrderID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != billingsvc.PollSuccess {
		t.Fatalf("unexpected poll status: %s", payload.Status)
	}
	if users.applyCount != 1 {
		t.Fatalf("poll confirmation applied %d times, want 1", users.applyCount)
	}
}
