package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/catalog/catalogtest"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/flow"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/planner"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/pubsub"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	pub := pubsub.NewSSEPublisher()
	t.Cleanup(func() { pub.Close() })
	p := planner.New(catalogtest.New(), catalogtest.Preferences(), planner.Options{Publisher: pub})
	return NewServer(p, pub)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func addNode(t *testing.T, s *Server, recipe string) model.Node {
	t.Helper()
	rec := do(t, s, "POST", "/api/nodes", `{"recipe":"`+recipe+`","position":{"x":1,"y":2}}`)
	expectStatus(t, rec, http.StatusCreated)
	var n model.Node
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func path(format string, id int64) string {
	return strings.Replace(format, "{id}", jsonNumber(id), 1)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestAPI_BuildAndSolve(t *testing.T) {
	s := newTestServer(t)
	plate := addNode(t, s, "iron-plate")
	gear := addNode(t, s, "iron-gear")

	body := `{"from":` + jsonNumber(plate.ID) + `,"to":` + jsonNumber(gear.ID) + `,"item":"iron-plate"}`
	expectStatus(t, do(t, s, "POST", "/api/edges", body), http.StatusCreated)

	rec := do(t, s, "PUT", path("/api/nodes/{id}/target", gear.ID), `{"target":30}`)
	expectStatus(t, rec, http.StatusOK)

	var resp PlanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	var plateTarget *float64
	for _, n := range resp.Plan.Nodes {
		if n.ID == plate.ID {
			plateTarget = n.Target
		}
	}
	if plateTarget == nil || *plateTarget != 60 {
		t.Errorf("Expected plate target 60, got %v", plateTarget)
	}
	if resp.Plan.Pins[gear.ID] != 30 {
		t.Errorf("Expected gear pinned at 30, got %v", resp.Plan.Pins)
	}

	rec = do(t, s, "GET", path("/api/nodes/{id}/flow", plate.ID)+"?item=iron-ore&side=input", "")
	expectStatus(t, rec, http.StatusOK)
	var flowResp struct {
		Rate float64 `json:"rate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &flowResp); err != nil {
		t.Fatal(err)
	}
	if flowResp.Rate != 60 {
		t.Errorf("Expected 60 ore in, got %v", flowResp.Rate)
	}

	rec = do(t, s, "GET", path("/api/nodes/{id}/stats", gear.ID), "")
	expectStatus(t, rec, http.StatusOK)
	var stats flow.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.CraftsPerMinute != 30 {
		t.Errorf("Expected 30 crafts/min, got %v", stats.CraftsPerMinute)
	}

	rec = do(t, s, "PUT", "/api/aggregation", `{"aggregation":"Sum"}`)
	expectStatus(t, rec, http.StatusOK)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Plan.Aggregation != model.AggregateSum {
		t.Errorf("Expected aggregation %q, got %q", model.AggregateSum, resp.Plan.Aggregation)
	}
	expectStatus(t, do(t, s, "POST", "/api/solve", ""), http.StatusOK)
	expectStatus(t, do(t, s, "GET", "/api/plan", ""), http.StatusOK)
}

func TestAPI_ErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	plate := addNode(t, s, "iron-plate")
	gear := addNode(t, s, "iron-gear")
	edge := `{"from":` + jsonNumber(plate.ID) + `,"to":` + jsonNumber(gear.ID) + `,"item":"iron-plate"}`
	expectStatus(t, do(t, s, "POST", "/api/edges", edge), http.StatusCreated)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown recipe", "POST", "/api/nodes", `{"recipe":"unobtainium"}`, http.StatusBadRequest},
		{"bad json", "POST", "/api/nodes", `{`, http.StatusBadRequest},
		{"unknown field", "POST", "/api/nodes", `{"recipe":"pipe","colour":"red"}`, http.StatusBadRequest},
		{"duplicate edge", "POST", "/api/edges", edge, http.StatusConflict},
		{"self edge", "POST", "/api/edges", `{"from":` + jsonNumber(plate.ID) + `,"to":` + jsonNumber(plate.ID) + `,"item":"iron-plate"}`, http.StatusBadRequest},
		{"bad quality", "POST", "/api/edges", `{"from":1,"to":2,"item":"x","quality":"shiny"}`, http.StatusBadRequest},
		{"missing node", "DELETE", "/api/nodes/999", "", http.StatusNotFound},
		{"missing edge", "DELETE", "/api/edges/999", "", http.StatusNotFound},
		{"negative target", "PUT", path("/api/nodes/{id}/target", gear.ID), `{"target":-3}`, http.StatusBadRequest},
		{"unknown module", "PUT", path("/api/nodes/{id}/modules", gear.ID), `{"modules":["nope"]}`, http.StatusBadRequest},
		{"bad aggregation", "PUT", "/api/aggregation", `{"aggregation":"avg"}`, http.StatusBadRequest},
		{"flow without item", "GET", path("/api/nodes/{id}/flow", gear.ID), "", http.StatusBadRequest},
		{"flow bad side", "GET", path("/api/nodes/{id}/flow", gear.ID) + "?item=x&side=left", "", http.StatusBadRequest},
		{"stats missing node", "GET", "/api/nodes/999/stats", "", http.StatusNotFound},
		{"non-numeric id", "DELETE", "/api/nodes/abc", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := do(t, s, tt.method, tt.path, tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, rec.Code, rec.Body.String())
		}
	}
}

func TestAPI_RemoveAndUnpin(t *testing.T) {
	s := newTestServer(t)
	plate := addNode(t, s, "iron-plate")
	gear := addNode(t, s, "iron-gear")
	rec := do(t, s, "POST", "/api/edges", `{"from":`+jsonNumber(plate.ID)+`,"to":`+jsonNumber(gear.ID)+`,"item":"iron-plate"}`)
	expectStatus(t, rec, http.StatusCreated)
	var e model.Edge
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}

	expectStatus(t, do(t, s, "PUT", path("/api/nodes/{id}/target", gear.ID), `{"target":10}`), http.StatusOK)
	rec = do(t, s, "PUT", path("/api/nodes/{id}/target", gear.ID), `{"target":null}`)
	expectStatus(t, rec, http.StatusOK)
	var resp PlanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Plan.Pins) != 0 {
		t.Errorf("Expected no pins, got %v", resp.Plan.Pins)
	}

	expectStatus(t, do(t, s, "DELETE", path("/api/edges/{id}", e.ID), ""), http.StatusNoContent)
	expectStatus(t, do(t, s, "DELETE", path("/api/nodes/{id}", plate.ID), ""), http.StatusNoContent)

	rec = do(t, s, "GET", "/api/plan", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Plan.Nodes) != 1 || len(resp.Plan.Edges) != 0 {
		t.Errorf("Expected 1 node and no edges, got %d/%d", len(resp.Plan.Nodes), len(resp.Plan.Edges))
	}
}

func TestAPI_SubscribePlan(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/subscribe/plan", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Subscribe request error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected event stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	// The connected comment arrives after the subscription exists
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("Expected connected comment, got %q (%v)", line, err)
	}

	post, err := http.Post(ts.URL+"/api/nodes", "application/json", bytes.NewBufferString(`{"recipe":"pipe"}`))
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("Stream ended before a solve event: %v", err)
		}
		if strings.HasPrefix(line, "event: ") {
			if got := strings.TrimSpace(strings.TrimPrefix(line, "event: ")); got != pubsub.EventSolved {
				t.Errorf("Expected solved event, got %q", got)
			}
			return
		}
	}
}
