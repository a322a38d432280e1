package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape returned %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMiddleware_RecordsRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/api/v1/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "busy")
	})

	for _, path := range []string{"/api/v1/patients/1", "/api/v1/patients/2", "/api/v1/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t)
	for _, want := range []string{
		`siah_http_requests_total{method="GET",route="/api/v1/patients/:id",status="200"} 2`,
		`siah_http_requests_total{method="GET",route="/api/v1/boom",status="409"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape output", want)
		}
	}
	if strings.Contains(body, `route="/api/v1/patients/1"`) {
		t.Error("raw path leaked into labels")
	}
}

func TestFlowGauges(t *testing.T) {
	SetQueueWaiting("triagem", 4)
	SetTicketsWaiting("prioridade", 2)
	SetActiveCalls(3)
	SetWebsocketClients(1)
	RecordDBConnections(5)
	RecordEvent("patient.registered")

	body := scrape(t)
	for _, want := range []string{
		`siah_queue_waiting_patients{queue="triagem"} 4`,
		`siah_tickets_waiting{type="prioridade"} 2`,
		`siah_board_active_calls 3`,
		`siah_websocket_clients 1`,
		`siah_db_connections_active 5`,
		`siah_flow_events_total{type="patient.registered"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape output", want)
		}
	}
}
