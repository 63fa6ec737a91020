package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"receivables/internal/config"
	"receivables/internal/database"
	"receivables/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		DBDriver:           config.DriverSQLite,
		DBDSN:              fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		JWTSecret:          []byte("test-secret"),
		PaymentBaseURL:     "http://localhost:3000",
		CORSOrigins:        []string{"http://localhost:3000"},
		LoginRatePerMinute: 600,
		LoginRateBurst:     100,
		RequestTimeout:     5 * time.Second,
	}
	db, err := database.NewConnection(cfg)
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.SeedAdmin(context.Background(), db, "admin", "admin123"); err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	api := &testAPI{t: t, router: NewRouter(cfg, db, hub)}
	var login struct {
		Token string `json:"token"`
	}
	api.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin123"}`, false, http.StatusOK, &login)
	api.token = login.Token
	return api
}

// do sends body (a JSON string, "" for none) and decodes the response into out
func (a *testAPI) do(method, path, body string, withToken bool, wantStatus int, out interface{}) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if withToken {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	if w.Code != wantStatus {
		a.t.Fatalf("%s %s status = %d, want %d: %s", method, path, w.Code, wantStatus, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s decode %s: %v", method, path, w.Body.String(), err)
		}
	}
}

type errorBody struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}

type invoiceBody struct {
	InvoiceID     string      `json:"invoice_id"`
	CustomerName  string      `json:"customer_name"`
	InvoiceDate   string      `json:"invoice_date"`
	DueDate       string      `json:"due_date"`
	AmountDue     json.Number `json:"amount_due"`
	PaymentStatus string      `json:"payment_status"`
	PaymentLink   string      `json:"payment_link"`
}

func (a *testAPI) create(name, amount string) invoiceBody {
	a.t.Helper()
	var res struct {
		Invoice invoiceBody `json:"invoice"`
	}
	body := fmt.Sprintf(`{"customer_name":%q,"customer_email":"jane@x.com","invoice_date":"2024-01-01","amount_due":%s}`, name, amount)
	a.do(http.MethodPost, "/api/invoices", body, true, http.StatusCreated, &res)
	return res.Invoice
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	var res map[string]string
	api.do(http.MethodGet, "/health", "", false, http.StatusOK, &res)
	if res["status"] != "OK" {
		t.Errorf("health = %v", res)
	}
}

func TestLoginScenarios(t *testing.T) {
	api := newTestAPI(t)

	var ok struct {
		Token   string `json:"token"`
		Message string `json:"message"`
		User    struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	api.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin123"}`, false, http.StatusOK, &ok)
	if ok.Token == "" || ok.User.Username != "admin" || ok.Message != "Login successful" {
		t.Errorf("login = %+v", ok)
	}

	var bad errorBody
	api.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`, false, http.StatusUnauthorized, &bad)
	if bad.Error != "Invalid credentials" || bad.Status != "error" || bad.StatusCode != 401 {
		t.Errorf("wrong password = %+v", bad)
	}

	var empty errorBody
	api.do(http.MethodPost, "/api/auth/login", `{}`, false, http.StatusBadRequest, &empty)
	if empty.Error != "Username and password required" {
		t.Errorf("empty login = %+v", empty)
	}

	var malformed errorBody
	api.do(http.MethodPost, "/api/auth/login", `{"username":`, false, http.StatusBadRequest, &malformed)
	if !strings.HasPrefix(malformed.Error, "Invalid request payload") {
		t.Errorf("malformed login = %+v", malformed)
	}

	var me struct {
		Username string `json:"username"`
	}
	api.do(http.MethodGet, "/api/auth/me", "", true, http.StatusOK, &me)
	if me.Username != "admin" {
		t.Errorf("me = %+v", me)
	}
}

func TestMutationsRequireToken(t *testing.T) {
	api := newTestAPI(t)
	inv := api.create("Jane", "10")

	cases := []struct{ method, path, body string }{
		{http.MethodGet, "/api/invoices", ""},
		{http.MethodPost, "/api/invoices", `{"customer_name":"x"}`},
		{http.MethodPut, "/api/invoices/" + inv.InvoiceID, `{}`},
		{http.MethodDelete, "/api/invoices/" + inv.InvoiceID, ""},
		{http.MethodGet, "/api/dashboard/stats", ""},
		{http.MethodGet, "/api/audit-logs", ""},
	}
	for _, tc := range cases {
		var res errorBody
		api.do(tc.method, tc.path, tc.body, false, http.StatusUnauthorized, &res)
		if res.Error == "" {
			t.Errorf("%s %s: empty error", tc.method, tc.path)
		}
	}

	// the invoice is untouched
	var got invoiceBody
	api.do(http.MethodGet, "/api/invoices/"+inv.InvoiceID, "", false, http.StatusOK, &got)
	if got.PaymentStatus != "pending" {
		t.Errorf("status = %q", got.PaymentStatus)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/"+inv.InvoiceID, nil)
	req.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("get with invalid token status = %d, want 401", w.Code)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	api := newTestAPI(t)
	inv := api.create("Jane Doe", "150")

	if inv.DueDate != "2024-01-31" || inv.PaymentStatus != "pending" || inv.AmountDue != "150.00" {
		t.Errorf("created = %+v", inv)
	}
	if !strings.HasPrefix(inv.PaymentLink, "http://localhost:3000/pay/") {
		t.Errorf("payment_link = %q", inv.PaymentLink)
	}

	var got invoiceBody
	api.do(http.MethodGet, "/api/invoices/"+inv.InvoiceID, "", true, http.StatusOK, &got)
	if got != inv {
		t.Errorf("get = %+v, want %+v", got, inv)
	}

	var updated struct {
		Invoice invoiceBody `json:"invoice"`
	}
	api.do(http.MethodPut, "/api/invoices/"+inv.InvoiceID,
		`{"customer_name":"Jane Roe","customer_email":"jane@x.com","invoice_date":"2024-01-01","amount_due":"200.5","invoice_id":"HACK","payment_status":"paid"}`,
		true, http.StatusOK, &updated)
	if updated.Invoice.InvoiceID != inv.InvoiceID || updated.Invoice.PaymentStatus != "pending" || updated.Invoice.AmountDue != "200.50" {
		t.Errorf("updated = %+v", updated.Invoice)
	}

	var payErr errorBody
	api.do(http.MethodPost, "/api/payments/"+inv.InvoiceID, `{"amount":150}`, false, http.StatusBadRequest, &payErr)

	var paid struct {
		Message string      `json:"message"`
		Invoice invoiceBody `json:"invoice"`
	}
	api.do(http.MethodPost, "/api/payments/"+inv.InvoiceID, `{"amount":200.50}`, false, http.StatusOK, &paid)
	if paid.Invoice.PaymentStatus != "paid" {
		t.Errorf("paid = %+v", paid)
	}

	var conflict errorBody
	api.do(http.MethodPost, "/api/payments/"+inv.InvoiceID, `{"amount":200.50}`, false, http.StatusConflict, &conflict)
	api.do(http.MethodPut, "/api/invoices/"+inv.InvoiceID, `{"customer_name":"X","customer_email":"x@x.com","amount_due":1}`, true, http.StatusConflict, &conflict)
	if conflict.Error != "cannot edit a paid invoice" {
		t.Errorf("edit paid = %+v", conflict)
	}
	api.do(http.MethodDelete, "/api/invoices/"+inv.InvoiceID, "", true, http.StatusConflict, &conflict)

	other := api.create("Other", "5")
	api.do(http.MethodDelete, "/api/invoices/"+other.InvoiceID, "", true, http.StatusOK, nil)
	var missing errorBody
	api.do(http.MethodGet, "/api/invoices/"+other.InvoiceID, "", true, http.StatusNotFound, &missing)
	api.do(http.MethodPost, "/api/payments/"+other.InvoiceID, `{"amount":5}`, false, http.StatusNotFound, &missing)
	api.do(http.MethodPut, "/api/invoices/"+other.InvoiceID, `{"customer_name":"X","customer_email":"x@x.com","amount_due":1}`, true, http.StatusNotFound, &missing)
}

func TestCreateValidation(t *testing.T) {
	api := newTestAPI(t)

	cases := map[string]string{
		`{"customer_name":"Jane","customer_email":"jane@x.com","amount_due":0}`:                   "amount_due must be greater than 0",
		`{"customer_email":"jane@x.com","amount_due":10}`:                                         "customer_name is required",
		`{"customer_name":"Jane","amount_due":10}`:                                                "customer_email is required",
		`{"customer_name":"Jane","customer_email":"jane@x.com"}`:                                  "amount_due is required",
		`{"customer_name":"Jane","customer_email":"jane@x.com","amount_due":"ten"}`:               "amount_due must be a number",
		`{"customer_name":"Jane","customer_email":"jane@x.com","amount_due":1,"due_date":"soon"}`: "due_date must be a date in YYYY-MM-DD format",
	}
	for body, message := range cases {
		var res errorBody
		api.do(http.MethodPost, "/api/invoices", body, true, http.StatusBadRequest, &res)
		if res.Error != message {
			t.Errorf("%s: error = %q, want %q", body, res.Error, message)
		}
	}

	rejected := []string{
		fmt.Sprintf(`{"customer_name":%q,"customer_email":"jane@x.com","amount_due":1}`, strings.Repeat("a", 256)),
		fmt.Sprintf(`{"customer_name":"Jane","customer_email":"jane@x.com","customer_phone":%q,"amount_due":1}`, strings.Repeat("5", 51)),
		`{"customer_name":"Jane","customer_email":"jane@x.com","amount_due":1`,
	}
	for _, body := range rejected {
		var res errorBody
		api.do(http.MethodPost, "/api/invoices", body, true, http.StatusBadRequest, &res)
		if !strings.HasPrefix(res.Error, "Invalid request payload") {
			t.Errorf("error = %q, want a payload error", res.Error)
		}
	}

	var list struct {
		Total int `json:"total"`
	}
	api.do(http.MethodGet, "/api/invoices", "", true, http.StatusOK, &list)
	if list.Total != 0 {
		t.Errorf("rejected payloads stored %d invoices", list.Total)
	}
}

func TestListStatsAndPaymentLink(t *testing.T) {
	api := newTestAPI(t)
	a := api.create("Alice", "100.10")
	b := api.create("Bob", "20")
	api.create("Carol", "0.05")
	api.do(http.MethodPost, "/api/payments/"+a.InvoiceID, `{"amount":"100.10"}`, false, http.StatusOK, nil)

	var all struct {
		Invoices []invoiceBody `json:"invoices"`
		Total    int           `json:"total"`
	}
	api.do(http.MethodGet, "/api/invoices?status=all", "", true, http.StatusOK, &all)
	if len(all.Invoices) != 3 || all.Total != 3 {
		t.Fatalf("list all = %+v", all)
	}

	var paidOnly struct {
		Invoices []invoiceBody `json:"invoices"`
	}
	api.do(http.MethodGet, "/api/invoices?status=paid", "", true, http.StatusOK, &paidOnly)
	if len(paidOnly.Invoices) != 1 || paidOnly.Invoices[0].InvoiceID != a.InvoiceID {
		t.Errorf("paid = %+v", paidOnly)
	}

	var search struct {
		Invoices []invoiceBody `json:"invoices"`
	}
	api.do(http.MethodGet, "/api/invoices?search=bO", "", true, http.StatusOK, &search)
	if len(search.Invoices) != 1 || search.Invoices[0].InvoiceID != b.InvoiceID {
		t.Errorf("search = %+v", search)
	}

	var page struct {
		Invoices []invoiceBody `json:"invoices"`
		Total    int           `json:"total"`
		Page     int           `json:"page"`
	}
	api.do(http.MethodGet, "/api/invoices?page=2&limit=2", "", true, http.StatusOK, &page)
	if len(page.Invoices) != 1 || page.Total != 3 || page.Page != 2 {
		t.Errorf("page = %+v", page)
	}

	var badStatus errorBody
	api.do(http.MethodGet, "/api/invoices?status=overdue", "", true, http.StatusBadRequest, &badStatus)

	var stats struct {
		Total       int         `json:"total"`
		Pending     int         `json:"pending"`
		Paid        int         `json:"paid"`
		TotalAmount json.Number `json:"totalAmount"`
	}
	api.do(http.MethodGet, "/api/dashboard/stats", "", true, http.StatusOK, &stats)
	if stats.Total != len(all.Invoices) || stats.Pending != 2 || stats.Paid != 1 || stats.TotalAmount != "120.15" {
		t.Errorf("stats = %+v", stats)
	}

	token := strings.TrimPrefix(b.PaymentLink, "http://localhost:3000/pay/")
	var linked invoiceBody
	api.do(http.MethodGet, "/api/payment-links/"+token, "", false, http.StatusOK, &linked)
	if linked.InvoiceID != b.InvoiceID {
		t.Errorf("payment link resolved %s, want %s", linked.InvoiceID, b.InvoiceID)
	}
	api.do(http.MethodGet, "/api/payment-links/"+uuid.NewString(), "", false, http.StatusNotFound, nil)

	var audit struct {
		Logs  []map[string]interface{} `json:"logs"`
		Total int                      `json:"total"`
	}
	api.do(http.MethodGet, "/api/audit-logs", "", true, http.StatusOK, &audit)
	if audit.Total != 4 {
		t.Errorf("audit total = %d, want 4", audit.Total)
	}
}

func TestPaymentRecordsAuthenticatedUser(t *testing.T) {
	api := newTestAPI(t)
	inv := api.create("Jane", "42")
	other := api.create("Bob", "7")

	forged := httptest.NewRequest(http.MethodPost, "/api/payments/"+inv.InvoiceID, strings.NewReader(`{"amount":42}`))
	forged.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, forged)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("pay with invalid token status = %d, want 401", w.Code)
	}
	var still invoiceBody
	api.do(http.MethodGet, "/api/invoices/"+inv.InvoiceID, "", false, http.StatusOK, &still)
	if still.PaymentStatus != "pending" {
		t.Fatalf("rejected payment changed status to %q", still.PaymentStatus)
	}

	api.do(http.MethodPost, "/api/payments/"+inv.InvoiceID, `{"amount":42}`, true, http.StatusOK, nil)
	api.do(http.MethodPost, "/api/payments/"+other.InvoiceID, `{"amount":7}`, false, http.StatusOK, nil)

	type auditEntry struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		Action   string `json:"action"`
		EntityID string `json:"entity_id"`
	}
	history := func(invoiceID string) []auditEntry {
		var res struct {
			Logs  []auditEntry `json:"logs"`
			Total int          `json:"total"`
		}
		api.do(http.MethodGet, "/api/audit-logs?invoice_id="+invoiceID, "", true, http.StatusOK, &res)
		if res.Total != len(res.Logs) {
			t.Fatalf("audit total = %d, logs = %d", res.Total, len(res.Logs))
		}
		return res.Logs
	}

	signed := history(inv.InvoiceID)
	if len(signed) != 2 || signed[0].Action != "PAY_INVOICE" || signed[1].Action != "CREATE_INVOICE" {
		t.Fatalf("history = %+v", signed)
	}
	if signed[0].UserID == "" || signed[0].Username != "admin" {
		t.Errorf("authenticated payment audit = %+v", signed[0])
	}
	for _, e := range signed {
		if e.EntityID != inv.InvoiceID {
			t.Errorf("history of %s contains %+v", inv.InvoiceID, e)
		}
	}

	anonymous := history(other.InvoiceID)
	if len(anonymous) != 2 || anonymous[0].UserID != "" || anonymous[0].Username != "Payment link" {
		t.Errorf("anonymous payment audit = %+v", anonymous)
	}
}

func TestConcurrentPayAndDelete(t *testing.T) {
	api := newTestAPI(t)
	inv := api.create("Race", "10")

	codes := make([]int, 2)
	var wg sync.WaitGroup
	requests := []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/payments/"+inv.InvoiceID, strings.NewReader(`{"amount":10}`)),
		httptest.NewRequest(http.MethodDelete, "/api/invoices/"+inv.InvoiceID, nil),
	}
	requests[1].Header.Set("Authorization", "Bearer "+api.token)
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	payCode, deleteCode := codes[0], codes[1]
	switch {
	case payCode == http.StatusOK && deleteCode == http.StatusConflict:
	case deleteCode == http.StatusOK && payCode == http.StatusNotFound:
	default:
		t.Errorf("pay = %d, delete = %d; want exactly one success", payCode, deleteCode)
	}
}

func TestSwaggerDocServed(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc.json is not JSON: %v", err)
	}
	paths, _ := doc["paths"].(map[string]interface{})
	if _, ok := paths["/api/invoices"]; !ok {
		t.Errorf("doc.json lacks /api/invoices")
	}
}
