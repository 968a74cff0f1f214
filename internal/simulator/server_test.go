package simulator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cadence/internal/feedback"
	"cadence/internal/logging"
	"cadence/internal/remote"
	"cadence/internal/simulator"
	"cadence/internal/wire"
)

func newSimulatorServer(t *testing.T) (*simulator.Engine, *httptest.Server) {
	t.Helper()
	engine := simulator.NewEngine()
	server := httptest.NewServer(simulator.NewServer(engine, logging.NewNop()))
	t.Cleanup(server.Close)
	return engine, server
}

func TestHealthEndpoint(t *testing.T) {
	_, server := newSimulatorServer(t)

	client, err := remote.NewClient(server.URL, "", time.Second, logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestFetchReturnsSeededRecords(t *testing.T) {
	engine, server := newSimulatorServer(t)
	engine.Seed("analysis-1", 3)

	client, err := remote.NewClient(server.URL, "", time.Second, logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	records, err := client.FetchFeedbackStatus(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("FetchFeedbackStatus: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			t.Fatalf("fetched record invalid: %v", err)
		}
	}
}

func TestAddEndpoint(t *testing.T) {
	engine, server := newSimulatorServer(t)

	body, _ := json.Marshal(wire.Record{
		Message:          "Raise the pitch at the question mark",
		Category:         "intonation",
		TimestampSeconds: 12.5,
		Confidence:       0.8,
	})
	resp, err := http.Post(server.URL+"/api/analyses/analysis-1/feedback", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created wire.Record
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.AnalysisID != "analysis-1" {
		t.Fatalf("created = %+v", created)
	}
	if got := len(engine.Records("analysis-1")); got != 1 {
		t.Fatalf("engine holds %d records, want 1", got)
	}
}

func TestEventStreamDeliversStepEvents(t *testing.T) {
	engine, server := newSimulatorServer(t)
	engine.Seed("analysis-1", 1)
	engine.Seed("analysis-2", 1)

	client, err := remote.NewClient(server.URL, "", time.Second, logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	conn, err := client.Open(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	// Give the server handler time to register its engine subscription
	// before stepping; events broadcast before then are simply missed.
	deadline := time.After(5 * time.Second)
	var ev feedback.Event
	got := false
	for !got {
		engine.Step()
		select {
		case ev = <-conn.Events():
			got = true
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received")
		}
	}

	if ev.AnalysisID != "analysis-1" {
		t.Fatalf("stream delivered foreign event: %+v", ev)
	}
	if !feedback.ValidStatus(ev.Pipeline, ev.Status) {
		t.Fatalf("event carries invalid cohort: %s/%s", ev.Pipeline, ev.Status)
	}
}
