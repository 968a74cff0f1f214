package simulator

import (
	"strings"
	"testing"

	"cadence/internal/feedback"
)

func TestSeedCreatesQueuedRecords(t *testing.T) {
	engine := NewEngine()
	records := engine.Seed("analysis-1", 4)

	if len(records) != 4 {
		t.Fatalf("seeded %d records, want 4", len(records))
	}
	for _, rec := range records {
		if rec.SSMLStatus != feedback.StatusQueued || rec.AudioStatus != feedback.StatusQueued {
			t.Fatalf("seeded record not queued: %+v", rec)
		}
		if rec.Message == "" || rec.Category == "" {
			t.Fatalf("seeded record missing payload: %+v", rec)
		}
		if err := rec.Validate(); err != nil {
			t.Fatalf("seeded record invalid: %v", err)
		}
	}
	if got := len(engine.Records("analysis-1")); got != 4 {
		t.Fatalf("engine holds %d records, want 4", got)
	}
}

func TestStepHappyPathCompletesBothPipelines(t *testing.T) {
	engine := NewEngine()
	engine.randFn = func() float64 { return 0 }
	engine.Seed("analysis-1", 1)

	// queued -> processing -> completed for ssml, then the same for audio.
	expect := []struct {
		pipeline feedback.Pipeline
		status   feedback.PipelineStatus
	}{
		{feedback.PipelineSSML, feedback.StatusProcessing},
		{feedback.PipelineSSML, feedback.StatusCompleted},
		{feedback.PipelineAudio, feedback.StatusProcessing},
		{feedback.PipelineAudio, feedback.StatusCompleted},
	}
	for i, want := range expect {
		events := engine.Step()
		if len(events) != 1 {
			t.Fatalf("step %d produced %d events, want 1", i, len(events))
		}
		ev := events[0]
		if ev.Pipeline != want.pipeline || ev.Status != want.status {
			t.Fatalf("step %d = %s/%s, want %s/%s", i, ev.Pipeline, ev.Status, want.pipeline, want.status)
		}
	}

	rec := engine.Records("analysis-1")[0]
	if !rec.Done() {
		t.Fatalf("record not done after full progression: %+v", rec)
	}
	if rec.SSMLAttempts != 1 || rec.AudioAttempts != 1 {
		t.Fatalf("attempts = %d/%d, want 1/1", rec.SSMLAttempts, rec.AudioAttempts)
	}

	if events := engine.Step(); len(events) != 0 {
		t.Fatalf("finished record still produced events: %v", events)
	}
}

func TestStepAudioCompletionCarriesPath(t *testing.T) {
	engine := NewEngine()
	engine.randFn = func() float64 { return 0 }
	records := engine.Seed("analysis-1", 1)

	var completed feedback.Event
	for i := 0; i < 4; i++ {
		for _, ev := range engine.Step() {
			if ev.Pipeline == feedback.PipelineAudio && ev.Status == feedback.StatusCompleted {
				completed = ev
			}
		}
	}
	if completed.ID == "" {
		t.Fatal("audio never completed")
	}
	if !strings.Contains(completed.AudioPath, records[0].ID) {
		t.Fatalf("audio path %q does not reference the record", completed.AudioPath)
	}
}

func TestStepFailurePathSetsError(t *testing.T) {
	engine := NewEngine()
	engine.randFn = func() float64 { return 0.99 }
	engine.Seed("analysis-1", 1)

	engine.Step() // queued -> processing
	events := engine.Step()
	if len(events) != 1 || events[0].Status != feedback.StatusFailed {
		t.Fatalf("expected ssml failure, got %v", events)
	}
	if events[0].LastError == "" {
		t.Fatal("failure event missing last error")
	}

	// With retry odds missed, the failed record stays put and audio never
	// starts.
	if events := engine.Step(); len(events) != 0 {
		t.Fatalf("failed record advanced: %v", events)
	}
	rec := engine.Records("analysis-1")[0]
	if rec.AudioStatus != feedback.StatusQueued {
		t.Fatalf("audio started despite ssml failure: %s", rec.AudioStatus)
	}
}

func TestStepAudioRetryIncrementsAttempts(t *testing.T) {
	engine := NewEngine()
	// SSML succeeds, audio misses its completion odds and retries.
	calls := 0
	engine.randFn = func() float64 {
		calls++
		if calls == 1 {
			return 0 // ssml processing -> completed
		}
		return 0.99 // audio processing -> retrying
	}
	engine.Seed("analysis-1", 1)

	engine.Step() // ssml queued -> processing
	engine.Step() // ssml processing -> completed
	engine.Step() // audio queued -> processing
	events := engine.Step()
	if len(events) != 1 || events[0].Status != feedback.StatusRetrying {
		t.Fatalf("expected retrying, got %v", events)
	}

	events = engine.Step()
	if len(events) != 1 || events[0].Status != feedback.StatusProcessing {
		t.Fatalf("expected processing after retry, got %v", events)
	}
	if events[0].Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", events[0].Attempts)
	}
}

func TestAddBroadcastsInsertEvent(t *testing.T) {
	engine := NewEngine()
	events, cancel := engine.Subscribe()
	defer cancel()

	added := engine.Add(feedback.Record{
		AnalysisID: "analysis-1",
		Message:    "Shorten the pause here",
		Category:   "pacing",
	})
	if added.ID == "" {
		t.Fatal("expected generated id")
	}

	ev := <-events
	if ev.ID != added.ID || ev.Record == nil {
		t.Fatalf("insert event = %+v", ev)
	}
	if ev.Record.SSMLStatus != feedback.StatusQueued {
		t.Fatalf("insert record status = %s", ev.Record.SSMLStatus)
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	engine := NewEngine()
	events, cancel := engine.Subscribe()
	cancel()

	if _, open := <-events; open {
		t.Fatal("channel should be closed after cancel")
	}
	// A second cancel is a no-op.
	cancel()
}
