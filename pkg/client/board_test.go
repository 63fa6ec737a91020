package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"receivables/internal/config"
	"receivables/internal/database"
	"receivables/internal/routes"
	"receivables/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newBoardServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		DBDriver:           config.DriverSQLite,
		DBDSN:              fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		JWTSecret:          []byte("test-secret"),
		PaymentBaseURL:     "http://localhost:3000",
		LoginRatePerMinute: 600,
		LoginRateBurst:     100,
		RequestTimeout:     5 * time.Second,
	}
	db, err := database.NewConnection(cfg)
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	sqlDB, _ := db.DB()
	if err := database.SeedAdmin(context.Background(), db, "admin", "admin123"); err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(routes.NewRouter(cfg, db, hub))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = sqlDB.Close()
	})
	return srv
}

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	c := New(newBoardServer(t).URL)
	s, err := c.Login(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	b := NewBoard(c, s)
	if err := b.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return b
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBoard_ReconcilesFromServer(t *testing.T) {
	b := newTestBoard(t)
	ctx := context.Background()

	inv, err := b.Create(ctx, InvoiceDraft{
		CustomerName:  "Jane",
		CustomerEmail: "jane@x.com",
		InvoiceDate:   "2024-01-01",
		AmountDue:     amount("150"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inv.DueDate != "2024-01-31" || inv.PaymentStatus != "pending" {
		t.Errorf("created = %+v", inv)
	}

	invoices, total := b.Invoices()
	if total != 1 || len(invoices) != 1 || invoices[0].InvoiceID != inv.InvoiceID {
		t.Fatalf("board invoices = %+v", invoices)
	}
	if st := b.Stats(); st.Total != 1 || st.Pending != 1 || !st.TotalAmount.Equal(amount("150")) {
		t.Errorf("stats = %+v", st)
	}

	if _, err := b.Pay(ctx, inv.InvoiceID, amount("150")); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	if st := b.Stats(); st.Paid != 1 || st.Pending != 0 || !st.TotalAmount.Equal(amount("150")) {
		t.Errorf("stats after pay = %+v", st)
	}

	// rejected commands keep the last confirmed state
	before, _ := b.Invoices()
	err = b.Delete(ctx, inv.InvoiceID)
	if !IsStatus(err, http.StatusConflict) {
		t.Fatalf("Delete(paid) error = %v, want 409", err)
	}
	_, err = b.Update(ctx, inv.InvoiceID, InvoiceDraft{CustomerName: "X", CustomerEmail: "x@x.com", AmountDue: amount("1")})
	if !IsStatus(err, http.StatusConflict) {
		t.Fatalf("Update(paid) error = %v, want 409", err)
	}
	after, _ := b.Invoices()
	if len(after) != len(before) || !after[0].IsPaid() {
		t.Errorf("board changed after rejected commands: %+v", after)
	}
}

func TestBoard_FilterAndDelete(t *testing.T) {
	b := newTestBoard(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"Alice", "Bob"} {
		inv, err := b.Create(ctx, InvoiceDraft{CustomerName: name, CustomerEmail: "a@b.co", AmountDue: amount("10.25")})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, inv.InvoiceID)
	}

	if err := b.SetFilter(ctx, ListOptions{Search: "ali"}); err != nil {
		t.Fatal(err)
	}
	invoices, _ := b.Invoices()
	if len(invoices) != 1 || invoices[0].InvoiceID != ids[0] {
		t.Errorf("filtered = %+v", invoices)
	}
	if b.Stats().Total != 2 {
		t.Errorf("stats must ignore the list filter: %+v", b.Stats())
	}

	if err := b.SetFilter(ctx, ListOptions{Status: "bogus"}); !IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("SetFilter(bogus) error = %v", err)
	}
	if b.Filter().Search != "ali" {
		t.Errorf("filter after failed SetFilter = %+v", b.Filter())
	}

	if err := b.Delete(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	invoices, total := b.Invoices()
	if len(invoices) != 0 || total != 0 {
		t.Errorf("after delete = %+v", invoices)
	}
	if st := b.Stats(); st.Total != 1 || !st.TotalAmount.Equal(amount("10.25")) {
		t.Errorf("stats after delete = %+v", st)
	}
}
