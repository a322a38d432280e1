package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/siah/siah/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return httpErr.Code
}

func TestHandler_RegisterPatient(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"Maria da Silva","cpf":"12345678900"}`), rec)

	if err := h.RegisterPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Patient.Status != StatusAwaitingTriage || resp.Ficha.Number != "F0001" {
		t.Errorf("unexpected response: %s", rec.Body.String())
	}
}

func TestHandler_RegisterPatient_MissingName(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"cpf":"123"}`), httptest.NewRecorder())

	if code := httpStatus(t, h.RegisterPatient(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler()
	p := mustRegister(t, h.svc, "Ana")

	tests := []struct {
		name string
		id   string
		code int
	}{
		{"found", "1", http.StatusOK},
		{"not found", "42", http.StatusNotFound},
		{"bad id", "abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)

			err := h.GetPatient(c)
			if tt.code == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(rec.Body.String(), p.RecordNumber) {
					t.Errorf("expected record number in body: %s", rec.Body.String())
				}
				return
			}
			if code := httpStatus(t, err); code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, code)
			}
		})
	}
}

func TestHandler_CallNextTriage(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Ana")

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"station":"Triagem 2"}`), rec)
	if err := h.CallNextTriage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp callResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Call.Location != "Triagem 2" || resp.Call.PublicName != "Ana" {
		t.Errorf("unexpected call: %+v", resp.Call)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	if code := httpStatus(t, h.CallNextTriage(c)); code != http.StatusNotFound {
		t.Errorf("expected 404 on empty queue, got %d", code)
	}
}

func TestHandler_CallStationKeys(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"station key", `{"station":"Triagem 2"}`, "Triagem 2"},
		{"consultorio alias", `{"consultorio":"Triagem 3"}`, "Triagem 3"},
		{"station wins", `{"station":"Triagem 4","consultorio":"Consultório 1"}`, "Triagem 4"},
		{"blank falls back", `{"station":"  "}`, "Triagem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler()
			mustRegister(t, h.svc, "Ana")

			rec := httptest.NewRecorder()
			if err := h.CallNextTriage(e.NewContext(jsonRequest(http.MethodPost, tt.body), rec)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var resp callResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Call.Location != tt.want {
				t.Errorf("expected location %q, got %q", tt.want, resp.Call.Location)
			}
		})
	}
}

func TestHandler_CallNextMedical_UsesTokenStation(t *testing.T) {
	h, e := newTestHandler()
	triaged(t, h.svc, "Ana", ColorRed)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	ctx := context.WithValue(req.Context(), auth.UserStationKey, "Consultório 3")
	rec := httptest.NewRecorder()
	c := e.NewContext(req.WithContext(ctx), rec)

	if err := h.CallNextMedical(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp callResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Patient.Station != "Consultório 3" {
		t.Errorf("expected token consultório, got %q", resp.Patient.Station)
	}

	// A second call from the same consultório is refused while busy.
	triaged(t, h.svc, "Bruno", ColorGreen)
	c = e.NewContext(req.WithContext(ctx), httptest.NewRecorder())
	if code := httpStatus(t, h.CallNextMedical(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_FinishTriage(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Ana")
	h.svc.CallNextTriage(context.Background(), "")

	tests := []struct {
		name string
		body string
		code int
	}{
		{"unknown colour", `{"color":"roxo"}`, http.StatusBadRequest},
		{"ok", `{"color":"amarelo","vital_signs":{"heart_rate":"90"},"pain_level":3}`, http.StatusOK},
		{"already triaged", `{"color":"amarelo"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, tt.body), rec)
			c.SetParamNames("id")
			c.SetParamValues("1")

			err := h.FinishTriage(c)
			if tt.code == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(rec.Body.String(), `"status":"aguardando_avaliacao_medica"`) {
					t.Errorf("unexpected body: %s", rec.Body.String())
				}
				return
			}
			if code := httpStatus(t, err); code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, code)
			}
		})
	}
}

func TestHandler_FinishConsultation(t *testing.T) {
	h, e := newTestHandler()
	triaged(t, h.svc, "Ana", ColorGreen)
	h.svc.CallNextMedical(context.Background(), "Consultório 1")

	req := jsonRequest(http.MethodPost, `{"final_status":"internado","diagnosis":"Pneumonia","return_date":"2025-04-10","doctor":"Outro"}`)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserNameKey, "Dr. Carlos"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.FinishConsultation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"internado"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	var p Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Consult == nil || p.Consult.Doctor != "Dr. Carlos" || p.Consult.ReturnDate != "2025-04-10" {
		t.Errorf("expected doctor from the token, got %+v", p.Consult)
	}
}

func TestHandler_ReclassifyAndStatus(t *testing.T) {
	h, e := newTestHandler()
	triaged(t, h.svc, "Ana", ColorGreen)

	c := e.NewContext(jsonRequest(http.MethodPatch, `{"color":"laranja"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Reclassify(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c = e.NewContext(jsonRequest(http.MethodPatch, `{"status":"atendimento_concluido"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	if code := httpStatus(t, h.UpdateStatus(c)); code != http.StatusConflict {
		t.Errorf("expected 409 for waiting patient, got %d", code)
	}
}

func TestHandler_Queues(t *testing.T) {
	h, e := newTestHandler()
	triaged(t, h.svc, "Ana", ColorGreen)
	mustRegister(t, h.svc, "Bruno")

	rec := httptest.NewRecorder()
	if err := h.WaitingTriage(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var triage []Patient
	json.Unmarshal(rec.Body.Bytes(), &triage)
	if len(triage) != 1 || triage[0].Name != "Bruno" {
		t.Errorf("unexpected triage queue: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.WaitingMedical(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var medical []Patient
	json.Unmarshal(rec.Body.Bytes(), &medical)
	if len(medical) != 1 || medical[0].Name != "Ana" {
		t.Errorf("unexpected medical queue: %s", rec.Body.String())
	}
}

func TestHandler_SearchPatients(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Maria Souza")
	mustRegister(t, h.svc, "João Lima")

	req := httptest.NewRequest(http.MethodGet, "/?q=maria&limit=10", nil)
	rec := httptest.NewRecorder()
	if err := h.SearchPatients(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Current(t *testing.T) {
	h, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("station")
	c.SetParamValues("Triagem")
	if err := h.Current(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for idle station, got %d", rec.Code)
	}

	mustRegister(t, h.svc, "Ana")
	h.svc.CallNextTriage(context.Background(), "Triagem")

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("station")
	c.SetParamValues("Triagem")
	if err := h.Current(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"Ana"`) {
		t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Fichas(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Ana")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.IssueFicha(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("patient_id")
	c.SetParamValues("1")
	if err := h.GetFicha(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("patient_id")
	c.SetParamValues("7")
	if code := httpStatus(t, h.GetFicha(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	rec = httptest.NewRecorder()
	if err := h.ListFichas(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fichas []Ficha
	json.Unmarshal(rec.Body.Bytes(), &fichas)
	if len(fichas) != 1 {
		t.Errorf("expected 1 ficha, got %d", len(fichas))
	}
}

func TestHandler_StatsAndCalls(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Ana")
	h.svc.CallNextTriage(context.Background(), "")

	rec := httptest.NewRecorder()
	if err := h.Statistics(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected stats: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.ActiveCalls(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var calls []Call
	json.Unmarshal(rec.Body.Bytes(), &calls)
	if len(calls) != 1 || calls[0].Kind != CallTriage {
		t.Errorf("unexpected calls: %s", rec.Body.String())
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"POST /api/v1/patients":                 false,
		"GET /api/v1/queues/medical":            false,
		"POST /api/v1/medical/:id/finish":       false,
		"PATCH /api/v1/patients/:id/priority":   false,
		"GET /api/v1/stations/:station/current": false,
		"GET /api/v1/stats":                     false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
