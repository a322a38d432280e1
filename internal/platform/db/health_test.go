package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSON(t *testing.T) {
	stats := &PoolStats{
		TotalConns:      10,
		IdleConns:       5,
		AcquiredConns:   5,
		MaxConns:        20,
		AcquireCount:    100,
		AcquireDuration: "1.5s",
		Healthy:         true,
	}

	b, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["total_conns"] != float64(10) {
		t.Errorf("expected total_conns 10, got %v", got["total_conns"])
	}
	if got["healthy"] != true {
		t.Errorf("expected healthy true, got %v", got["healthy"])
	}
}

func TestHealthReport_OmitsEmptyError(t *testing.T) {
	b, err := json.Marshal(healthReport{Status: "healthy", Store: "postgres", Ping: "1ms", Pool: &PoolStats{}})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["error"]; ok {
		t.Error("expected error to be omitted when healthy")
	}
	if got["store"] != "postgres" || got["pool"] == nil {
		t.Errorf("unexpected report: %v", got)
	}
}
