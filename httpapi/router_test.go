package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"ledger-exchange/auth"
	"ledger-exchange/matching"
	"ledger-exchange/ratelimit"
	"ledger-exchange/store"
)

func newTestServer(t *testing.T, burst int, window time.Duration) *Server {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap store: %v", err)
	}
	engine := matching.New(st)
	authSvc := auth.New(st, "test-secret", time.Hour, 1000, 100)
	limiter := ratelimit.New(st, burst, window)
	return New(st, engine, authSvc, limiter, "token")
}

func signupAndLogin(t *testing.T, router http.Handler, name, password string) string {
	t.Helper()

	signupReq := httptest.NewRequest(http.MethodPost, "/signup?name="+name+"&password="+password, nil)
	signupRec := httptest.NewRecorder()
	router.ServeHTTP(signupRec, signupReq)
	if signupRec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body = %s", signupRec.Code, signupRec.Body.String())
	}

	form := url.Values{"username": {name}, "password": {password}}
	tokenReq := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	tokenReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokenRec := httptest.NewRecorder()
	router.ServeHTTP(tokenRec, tokenReq)
	if tokenRec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", tokenRec.Code, tokenRec.Body.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(tokenRec.Body).Decode(&body); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatalf("expected a non-empty access token")
	}
	return body.AccessToken
}

func TestSignupTokenBalance(t *testing.T) {
	server := newTestServer(t, 100, time.Minute)
	router := server.Router()

	token := signupAndLogin(t, router, "rik", "foo123")

	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var balance struct {
		Balance int64 `json:"balance"`
		Stock   int64 `json:"stock"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != 1000 || balance.Stock != 100 {
		t.Errorf("balance = %+v, want {1000 100}", balance)
	}
}

func TestBalance_RequiresAuth(t *testing.T) {
	server := newTestServer(t, 100, time.Minute)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSubmitAndOrderBook(t *testing.T) {
	server := newTestServer(t, 100, time.Minute)
	router := server.Router()

	sellerToken := signupAndLogin(t, router, "alice", "pw12345")

	submitBody := strings.NewReader(`{"p":31,"q":5,"d":"sell","tif":"GTC"}`)
	req := httptest.NewRequest(http.MethodPost, "/submit", submitBody)
	req.Header.Set("Authorization", "Bearer "+sellerToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", rec.Code, rec.Body.String())
	}

	bookReq := httptest.NewRequest(http.MethodGet, "/orderbook", nil)
	bookRec := httptest.NewRecorder()
	router.ServeHTTP(bookRec, bookReq)
	if bookRec.Code != http.StatusOK {
		t.Fatalf("orderbook status = %d, body = %s", bookRec.Code, bookRec.Body.String())
	}
	if !strings.Contains(bookRec.Body.String(), `"sell"`) {
		t.Errorf("expected a sell side in orderbook response, got %s", bookRec.Body.String())
	}
}

func TestSubmit_RejectsInvalidBody(t *testing.T) {
	server := newTestServer(t, 100, time.Minute)
	router := server.Router()
	token := signupAndLogin(t, router, "alice", "pw12345")

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"p":0,"q":5,"d":"sell","tif":"GTC"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCancel_NonOwnedOrderReturns401(t *testing.T) {
	server := newTestServer(t, 100, time.Minute)
	router := server.Router()

	sellerToken := signupAndLogin(t, router, "alice", "pw12345")
	otherToken := signupAndLogin(t, router, "bob", "pw12345")

	submitReq := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"p":31,"q":5,"d":"sell","tif":"GTC"}`))
	submitReq.Header.Set("Authorization", "Bearer "+sellerToken)
	submitRec := httptest.NewRecorder()
	router.ServeHTTP(submitRec, submitReq)
	if submitRec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", submitRec.Code, submitRec.Body.String())
	}
	var submitResp struct {
		LogicalTimestamp int64 `json:"logical_timestamp"`
	}
	if err := json.NewDecoder(submitRec.Body).Decode(&submitResp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}

	cancelReq := httptest.NewRequest(http.MethodPost, "/cancel?logical_timestamp="+strconv.FormatInt(submitResp.LogicalTimestamp, 10), nil)
	cancelReq.Header.Set("Authorization", "Bearer "+otherToken)
	cancelRec := httptest.NewRecorder()
	router.ServeHTTP(cancelRec, cancelReq)

	if cancelRec.Code != http.StatusUnauthorized {
		t.Fatalf("cancel of non-owned order status = %d, want 401, body = %s", cancelRec.Code, cancelRec.Body.String())
	}
}

// Mirrors spec.md §8's rate-limit scenario: N requests within the window
// succeed, the N+1th is rejected with 429, and admission resumes once the
// window has elapsed.
func TestRateLimit_BurstThenRecover(t *testing.T) {
	server := newTestServer(t, 5, 200*time.Millisecond)
	router := server.Router()

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request status = %d, want 429", rec.Code)
	}

	time.Sleep(250 * time.Millisecond)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("request after window elapsed status = %d, want 200", rec.Code)
	}
}
