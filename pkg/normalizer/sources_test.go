package normalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/subtexthq/powermap/pkg/model"
)

// fakeSource is a test feed with a canned response or failure mode.
type fakeSource struct {
	name    string
	records []RawRecord
	err     error
	delay   time.Duration
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records, nil
}

// TestIngest_MergesSources tests that records from all sources land in one batch
func TestIngest_MergesSources(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()

	messages := &fakeSource{name: "messages", records: []RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: asOf.Add(-time.Hour), WeightHint: 1},
	}}
	calendar := &fakeSource{name: "calendar", records: []RawRecord{
		{SourceType: model.SourceMeeting, Participants: []string{"b", "c"}, Timestamp: asOf.Add(-time.Hour), WeightHint: 1},
	}}

	result := n.Ingest(context.Background(), time.Second, asOf, messages, calendar)

	if result.Partial() {
		t.Fatalf("Expected complete ingest, failed sources: %v", result.FailedSources)
	}
	if len(result.Events) != 2 {
		t.Fatalf("Expected 2 merged events, got %d", len(result.Events))
	}
}

// TestIngest_FailedSourceIsIsolated tests that one failing feed does not take
// down the others
func TestIngest_FailedSourceIsIsolated(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()

	good := &fakeSource{name: "messages", records: []RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: asOf.Add(-time.Hour), WeightHint: 1},
	}}
	bad := &fakeSource{name: "calendar", err: errors.New("upstream 503")}

	result := n.Ingest(context.Background(), time.Second, asOf, good, bad)

	if !result.Partial() {
		t.Fatal("Expected partial ingest")
	}
	if len(result.FailedSources) != 1 || result.FailedSources[0] != "calendar" {
		t.Errorf("Expected failed sources [calendar], got %v", result.FailedSources)
	}
	if len(result.Events) != 1 {
		t.Errorf("Expected the healthy source's event to survive, got %d", len(result.Events))
	}
}

// TestIngest_TimeoutBecomesTypedError tests deadline conversion per source
func TestIngest_TimeoutBecomesTypedError(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()

	slow := &fakeSource{name: "calendar", delay: time.Second}
	result := n.Ingest(context.Background(), 20*time.Millisecond, asOf, slow)

	if !result.Partial() {
		t.Fatal("Expected partial ingest from timed-out source")
	}
	if len(result.SourceErrors) != 1 {
		t.Fatalf("Expected 1 source error, got %d", len(result.SourceErrors))
	}
	var timeout *TimeoutError
	if !errors.As(result.SourceErrors[0], &timeout) {
		t.Fatalf("Expected TimeoutError, got %v", result.SourceErrors[0])
	}
	if timeout.Source != "calendar" {
		t.Errorf("Expected timeout attributed to calendar, got %q", timeout.Source)
	}
}

// TestIngest_CrossSourceDedup tests that the same exchange arriving from two
// feeds collapses to one event
func TestIngest_CrossSourceDedup(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()
	ts := asOf.Add(-time.Hour).Truncate(time.Second)

	rec := RawRecord{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: ts, WeightHint: 1}
	first := &fakeSource{name: "primary", records: []RawRecord{rec}}
	second := &fakeSource{name: "backup", records: []RawRecord{rec}}

	result := n.Ingest(context.Background(), time.Second, asOf, first, second)
	if len(result.Events) != 1 {
		t.Fatalf("Expected cross-source duplicate to collapse, got %d events", len(result.Events))
	}
}

// TestIngest_NoSources tests the degenerate empty call
func TestIngest_NoSources(t *testing.T) {
	n := testNormalizer(t)
	result := n.Ingest(context.Background(), time.Second, time.Now())
	if result.Partial() || len(result.Events) != 0 {
		t.Errorf("Expected empty complete result, got %+v", result)
	}
}
