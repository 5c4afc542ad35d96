package archive

import (
	"context"
	"testing"
	"time"

	"github.com/subtexthq/powermap/pkg/graph"
	"github.com/subtexthq/powermap/pkg/model"
)

// TestEncodeDecode_RoundTrip tests the compressed snapshot codec
func TestEncodeDecode_RoundTrip(t *testing.T) {
	snap := &graph.Snapshot{
		ID:       "snap-1",
		TenantID: "acme",
		AsOf:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Nodes:    []graph.Node{{PlayerID: "A", Label: "Alice"}, {PlayerID: "B", Label: "Bob"}},
		Edges: []graph.Edge{
			{From: "A", To: "B", Weight: 10, Kind: model.KindFormal, Provenance: model.ProvenanceManual},
		},
		Partial:       true,
		FailedSources: []string{"calendar"},
	}

	data, err := Encode(snap)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.ID != snap.ID || got.TenantID != snap.TenantID {
		t.Errorf("Identity mismatch: got %s/%s", got.TenantID, got.ID)
	}
	if !got.AsOf.Equal(snap.AsOf) {
		t.Errorf("AsOf mismatch: got %v", got.AsOf)
	}
	if len(got.Nodes) != 2 || len(got.Edges) != 1 {
		t.Errorf("Topology mismatch: %d nodes %d edges", len(got.Nodes), len(got.Edges))
	}
	if got.Edges[0] != snap.Edges[0] {
		t.Errorf("Edge mismatch: %+v", got.Edges[0])
	}
	if !got.Partial || len(got.FailedSources) != 1 {
		t.Errorf("Partial bookkeeping lost: partial=%v failed=%v", got.Partial, got.FailedSources)
	}
}

// TestDecode_Garbage tests rejection of corrupt archives
func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not snappy")); err == nil {
		t.Error("Expected decode of garbage to fail")
	}
}

// TestKey tests the object key layout
func TestKey(t *testing.T) {
	snap := &graph.Snapshot{ID: "snap-1", TenantID: "acme"}
	want := "tenants/acme/snapshots/snap-1.json.sz"
	if got := Key(snap); got != want {
		t.Errorf("Expected key %q, got %q", want, got)
	}
}

// TestNewExporter_RequiresBucket tests config validation
func TestNewExporter_RequiresBucket(t *testing.T) {
	if _, err := NewExporter(context.Background(), Config{}, nil); err == nil {
		t.Error("Expected missing bucket to be rejected")
	}
}
