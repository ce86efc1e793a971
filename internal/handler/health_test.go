package handler

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestHealth_PublicIsMinimal(t *testing.T) {
	app := newTestApp(t)

	status, body := app.do(http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(resp["status"]) != `"healthy"` {
		t.Errorf("status field = %s, want healthy", resp["status"])
	}
	if _, ok := resp["checks"]; ok {
		t.Error("public health response should not include check details")
	}
	if _, ok := resp["uptime"]; ok {
		t.Error("public health response should not include uptime")
	}
}

func TestHealth_SuperuserGetsChecks(t *testing.T) {
	app := newTestApp(t)
	app.createUser("root", true, false)
	app.login("root")

	status, body := app.do(http.MethodGet, "/health?verbose=true", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var resp HealthStatus
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["database"].Status != "healthy" {
		t.Errorf("database check = %+v", resp.Checks["database"])
	}
	if resp.System == nil {
		t.Error("verbose health should include system info")
	}
}
