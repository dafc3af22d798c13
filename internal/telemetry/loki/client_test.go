package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPushEvent_RequestFormat(t *testing.T) {
	var received PushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want %q", r.Method, http.MethodPost)
		}
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q, want /loki/api/v1/push", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("Decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := PushEvent(context.Background(), server.URL, ts, `{"eventType":"logout"}`, map[string]string{
		"org_id":     "org-1",
		"event_type": "log out", // invalid label chars get sanitized
	})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	if len(received.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(received.Streams))
	}
	stream := received.Streams[0]
	if stream.Stream["job"] != "authcore" {
		t.Errorf("job label = %q, want authcore", stream.Stream["job"])
	}
	if stream.Stream["org_id"] != "org-1" {
		t.Errorf("org_id label = %q, want org-1", stream.Stream["org_id"])
	}
	if stream.Stream["event_type"] != "log_out" {
		t.Errorf("event_type label = %q, want log_out", stream.Stream["event_type"])
	}
	if len(stream.Values) != 1 || len(stream.Values[0]) != 2 {
		t.Fatalf("values = %v, want one [ts, line] pair", stream.Values)
	}
	if stream.Values[0][0] != fmt.Sprintf("%d", ts.UnixNano()) {
		t.Errorf("timestamp = %q, want %d", stream.Values[0][0], ts.UnixNano())
	}
	if stream.Values[0][1] != `{"eventType":"logout"}` {
		t.Errorf("line = %q", stream.Values[0][1])
	}
}

func TestPushEvent_EmptyBaseURL(t *testing.T) {
	err := PushEvent(context.Background(), "", time.Now(), "line", nil)
	if err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestPushEvent_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := PushEvent(context.Background(), server.URL, time.Now(), "line", nil)
	if err == nil {
		t.Fatal("expected error for 500 status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status", err.Error())
	}
}

func TestPushEventJSON_ExtractsLabelsAndTimestamp(t *testing.T) {
	var received PushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	raw := []byte(`{"orgId":"org-1","eventType":"token_reuse_detected","source":"grpc","severity":"critical","createdAt":"2025-06-01T12:00:00Z"}`)
	if err := PushEventJSON(context.Background(), server.URL, raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}

	stream := received.Streams[0]
	want := map[string]string{
		"job":        "authcore",
		"org_id":     "org-1",
		"event_type": "token_reuse_detected",
		"source":     "grpc",
		"severity":   "critical",
	}
	for k, v := range want {
		if stream.Stream[k] != v {
			t.Errorf("label %q = %q, want %q", k, stream.Stream[k], v)
		}
	}
	wantNs := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	if stream.Values[0][0] != fmt.Sprintf("%d", wantNs) {
		t.Errorf("timestamp = %q, want %d", stream.Values[0][0], wantNs)
	}
	if stream.Values[0][1] != string(raw) {
		t.Errorf("line = %q, want raw event JSON", stream.Values[0][1])
	}
}

func TestPushEventJSON_MalformedFallsBackToRawLine(t *testing.T) {
	var received PushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	before := time.Now().UTC()
	raw := []byte(`not json at all`)
	if err := PushEventJSON(context.Background(), server.URL, raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	after := time.Now().UTC()

	stream := received.Streams[0]
	if len(stream.Stream) != 1 || stream.Stream["job"] != "authcore" {
		t.Errorf("labels = %v, want only job=authcore", stream.Stream)
	}
	if stream.Values[0][1] != "not json at all" {
		t.Errorf("line = %q, want raw input", stream.Values[0][1])
	}
	var ns int64
	if _, err := fmt.Sscanf(stream.Values[0][0], "%d", &ns); err != nil {
		t.Fatalf("parse timestamp %q: %v", stream.Values[0][0], err)
	}
	got := time.Unix(0, ns)
	if got.Before(before.Add(-time.Second)) || got.After(after.Add(time.Second)) {
		t.Errorf("timestamp = %v, want about now", got)
	}
}
