package normalizer

import (
	"testing"
	"time"

	"github.com/subtexthq/powermap/pkg/model"
)

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return New(Config{}, nil)
}

// TestNormalize_ValidBatch tests straightforward conversion
func TestNormalize_ValidBatch(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()

	events, skipped := n.Normalize([]RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"bob", "alice"}, Timestamp: asOf.Add(-time.Hour), WeightHint: 1},
		{SourceType: model.SourceMeeting, Participants: []string{"alice", "carol", "dave"}, Timestamp: asOf.Add(-2 * time.Hour), WeightHint: 2},
	}, asOf)

	if len(skipped) != 0 {
		t.Fatalf("Expected no skips, got %v", skipped)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	// Participants come out sorted.
	if events[0].Participants[0] != "alice" || events[0].Participants[1] != "bob" {
		t.Errorf("Expected sorted participants, got %v", events[0].Participants)
	}
}

// TestNormalize_MalformedRecordsSkipped tests partial success on bad input
func TestNormalize_MalformedRecordsSkipped(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()

	events, skipped := n.Normalize([]RawRecord{
		{SourceType: "carrier-pigeon", Participants: []string{"a", "b"}, Timestamp: asOf},
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}},
		{SourceType: model.SourceMessage, Participants: []string{"a", "a", " A "}, Timestamp: asOf},
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: asOf, WeightHint: -3},
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: asOf.Add(-time.Minute), WeightHint: 1},
	}, asOf)

	if len(events) != 1 {
		t.Fatalf("Expected 1 surviving event, got %d", len(events))
	}
	if len(skipped) != 4 {
		t.Fatalf("Expected 4 skipped records, got %d", len(skipped))
	}
	// Skip entries carry the batch index of the offender.
	for i, want := range []int{0, 1, 2, 3} {
		if skipped[i].Index != want {
			t.Errorf("Expected skip index %d, got %d", want, skipped[i].Index)
		}
	}
}

// TestNormalize_Dedup tests that re-ingesting the same records is idempotent
func TestNormalize_Dedup(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()
	ts := asOf.Add(-time.Hour).Truncate(time.Second)

	batch := []RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"alice", "bob"}, Timestamp: ts, WeightHint: 1},
		// Same exchange, participants in a different order and case.
		{SourceType: model.SourceMessage, Participants: []string{"Bob", "Alice"}, Timestamp: ts, WeightHint: 1},
		// Same second, different sub-second offset.
		{SourceType: model.SourceMessage, Participants: []string{"alice", "bob"}, Timestamp: ts.Add(500 * time.Millisecond), WeightHint: 1},
	}

	events, skipped := n.Normalize(batch, asOf)
	if len(skipped) != 0 {
		t.Fatalf("Expected no skips, got %v", skipped)
	}
	if len(events) != 1 {
		t.Fatalf("Expected duplicates to collapse to 1 event, got %d", len(events))
	}
}

// TestNormalize_MeetingMinuteGranularity tests the coarser meeting rounding
func TestNormalize_MeetingMinuteGranularity(t *testing.T) {
	n := testNormalizer(t)
	asOf := time.Now()
	start := asOf.Add(-time.Hour).Truncate(time.Minute)

	events, _ := n.Normalize([]RawRecord{
		{SourceType: model.SourceMeeting, Participants: []string{"a", "b"}, Timestamp: start, WeightHint: 1},
		{SourceType: model.SourceMeeting, Participants: []string{"a", "b"}, Timestamp: start.Add(20 * time.Second), WeightHint: 1},
	}, asOf)

	if len(events) != 1 {
		t.Fatalf("Expected meetings within the same minute to collapse, got %d events", len(events))
	}

	// Messages keep second granularity, so the same offset stays distinct.
	events, _ = n.Normalize([]RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: start, WeightHint: 1},
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: start.Add(20 * time.Second), WeightHint: 1},
	}, asOf)
	if len(events) != 2 {
		t.Fatalf("Expected messages 20s apart to stay distinct, got %d events", len(events))
	}
}

// TestNormalize_RetentionWindow tests silent dropping of expired records
func TestNormalize_RetentionWindow(t *testing.T) {
	n := New(Config{Retention: 30 * 24 * time.Hour}, nil)
	asOf := time.Now()

	events, skipped := n.Normalize([]RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: asOf.Add(-31 * 24 * time.Hour), WeightHint: 1},
		{SourceType: model.SourceMessage, Participants: []string{"a", "b"}, Timestamp: asOf.Add(-29 * 24 * time.Hour), WeightHint: 1},
	}, asOf)

	if len(skipped) != 0 {
		t.Fatalf("Expected expiry to be silent, got skips %v", skipped)
	}
	if len(events) != 1 {
		t.Fatalf("Expected only the in-window record, got %d events", len(events))
	}
}

// TestMessageRecord_Raw tests the message boundary conversion
func TestMessageRecord_Raw(t *testing.T) {
	ts := time.Now()
	raw := MessageRecord{From: "alice", To: []string{"bob"}, CC: []string{"carol"}, Timestamp: ts}.Raw()

	if raw.SourceType != model.SourceMessage {
		t.Errorf("Expected message source, got %q", raw.SourceType)
	}
	if len(raw.Participants) != 3 {
		t.Errorf("Expected 3 participants, got %v", raw.Participants)
	}
	if raw.WeightHint != 1.0 {
		t.Errorf("Expected implicit hint 1.0, got %v", raw.WeightHint)
	}
}

// TestMeetingRecord_Raw tests the meeting boundary conversion
func TestMeetingRecord_Raw(t *testing.T) {
	raw := MeetingRecord{Attendees: []string{"a", "b"}, Start: time.Now(), WeightHint: 2.5}.Raw()
	if raw.SourceType != model.SourceMeeting {
		t.Errorf("Expected meeting source, got %q", raw.SourceType)
	}
	if raw.WeightHint != 2.5 {
		t.Errorf("Expected hint 2.5, got %v", raw.WeightHint)
	}

	defaulted := MeetingRecord{Attendees: []string{"a", "b"}, Start: time.Now()}.Raw()
	if defaulted.WeightHint != 1.0 {
		t.Errorf("Expected default hint 1.0, got %v", defaulted.WeightHint)
	}
}
