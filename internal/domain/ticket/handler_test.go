package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func expectHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestHandler_Issue(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"prioridade"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Issue(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var tk Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &tk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tk.Code != "P001" {
		t.Errorf("expected P001, got %s", tk.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"vip"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	expectHTTPStatus(t, h.Issue(e.NewContext(req, httptest.NewRecorder())), http.StatusBadRequest)
}

func TestHandler_CallNextAndCancel(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()

	expectHTTPStatus(t, h.CallNext(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())), http.StatusNotFound)

	issued, _ := h.svc.Issue(ctx, TypeNormal)
	rec := httptest.NewRecorder()
	if err := h.CallNext(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"chamada"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(issued.ID.String())
	if err := h.CancelCall(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(issued.ID.String())
	expectHTTPStatus(t, h.CancelCall(c), http.StatusConflict)

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	expectHTTPStatus(t, h.CancelCall(c), http.StatusBadRequest)

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectHTTPStatus(t, h.CancelCall(c), http.StatusNotFound)
}

func TestHandler_WaitingAndRecent(t *testing.T) {
	h, e := newTestHandler()
	ctx := context.Background()
	h.svc.Issue(ctx, TypeNormal)
	h.svc.Issue(ctx, TypePriority)
	h.svc.Issue(ctx, TypeNormal)
	h.svc.CallNext(ctx)

	rec := httptest.NewRecorder()
	if err := h.Waiting(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var q Queue
	json.Unmarshal(rec.Body.Bytes(), &q)
	if q.Normal != 2 || q.Priority != 0 {
		t.Errorf("unexpected queue: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.RecentCalls(e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=5", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var recent []Ticket
	json.Unmarshal(rec.Body.Bytes(), &recent)
	if len(recent) != 1 || recent[0].Code != "P001" {
		t.Errorf("unexpected recent calls: %s", rec.Body.String())
	}

	expectHTTPStatus(t, h.RecentCalls(e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=0", nil), httptest.NewRecorder())), http.StatusBadRequest)
}
