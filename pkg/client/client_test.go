package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		if body["username"] != "admin" || body["password"] != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"token":   "tok",
			"user":    map[string]string{"id": "u-1", "username": "admin", "role": "admin"},
			"message": "Login successful",
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	s, err := c.Login(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if s.Token != "tok" || s.User.Username != "admin" {
		t.Errorf("session = %+v", s)
	}

	_, err = c.Login(context.Background(), "admin", "wrong")
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("Login(wrong) error = %v, want 401", err)
	}
	if !strings.Contains(err.Error(), "Invalid credentials") {
		t.Errorf("error = %q, want server message", err.Error())
	}
}

func TestSessionIsSentExplicitly(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"invoice_id": "INV-1", "amount_due": 12.5}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	if _, err := c.GetInvoice(ctx, &Session{Token: "one"}, "INV-1"); err != nil {
		t.Fatal(err)
	}
	inv, err := c.GetInvoice(ctx, nil, "INV-1")
	if err != nil {
		t.Fatal(err)
	}
	if !inv.AmountDue.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("AmountDue = %s", inv.AmountDue)
	}

	if len(gotAuth) != 2 || gotAuth[0] != "Bearer one" || gotAuth[1] != "" {
		t.Errorf("Authorization headers = %q", gotAuth)
	}

	if _, err := c.ListInvoices(ctx, nil, ListOptions{}); !errors.Is(err, ErrNoSession) {
		t.Errorf("ListInvoices(nil session) error = %v, want ErrNoSession", err)
	}
}

func TestListInvoicesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search") != "jane doe" || q.Get("status") != "paid" || q.Get("limit") != "5" || q.Get("page") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "unexpected query " + r.URL.RawQuery}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"invoices": []map[string]any{{"invoice_id": "INV-2", "payment_status": "paid", "amount_due": 1}},
			"total":    6,
		})
	}))
	defer srv.Close()

	page, err := New(srv.URL).ListInvoices(context.Background(), &Session{Token: "t"}, ListOptions{
		Search: "jane doe", Status: "paid", Page: 2, Limit: 5,
	})
	if err != nil {
		t.Fatalf("ListInvoices() error: %v", err)
	}
	if page.Total != 6 || len(page.Invoices) != 1 || !page.Invoices[0].IsPaid() {
		t.Errorf("page = %+v", page)
	}
}

func TestHTTPErrorWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Stats(context.Background(), &Session{Token: "t"})
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("error = %v, want 502", err)
	}
	if !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("error = %q", err.Error())
	}
}
