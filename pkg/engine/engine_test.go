package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtexthq/powermap/pkg/config"
	"github.com/subtexthq/powermap/pkg/encryption"
	"github.com/subtexthq/powermap/pkg/graph"
	"github.com/subtexthq/powermap/pkg/insight"
	"github.com/subtexthq/powermap/pkg/metrics"
	"github.com/subtexthq/powermap/pkg/model"
	"github.com/subtexthq/powermap/pkg/normalizer"
	"github.com/subtexthq/powermap/pkg/store"
)

const testTenant = "acme-corp"

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(config.Default(), store.NewMemory(), nil, metrics.NewRegistry())
}

func mustCreatePlayer(t *testing.T, e *Engine, id, name string, status model.RelationshipStatus) {
	t.Helper()
	_, err := e.CreatePlayer(context.Background(), testTenant, &model.PlayerRequest{
		ID: id, Name: name, InfluenceLevel: 5, Status: status,
	})
	require.NoError(t, err)
}

// staticSource feeds canned records into ingestion.
type staticSource struct {
	name    string
	records []normalizer.RawRecord
	err     error
}

func (s *staticSource) Name() string { return s.name }
func (s *staticSource) Fetch(context.Context) ([]normalizer.RawRecord, error) {
	return s.records, s.err
}

// TestEngine_PlayerLifecycle tests create, list and validation at the facade
func TestEngine_PlayerLifecycle(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustCreatePlayer(t, e, "alice@example.com", "Alice", model.StatusAlly)

	_, err := e.CreatePlayer(ctx, testTenant, &model.PlayerRequest{ID: "bad id!", Name: "X", InfluenceLevel: 5})
	assert.Error(t, err, "invalid player id must be rejected")

	players, err := e.ListPlayers(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Alice", players[0].Name)

	require.NoError(t, e.DeletePlayer(ctx, testTenant, "alice@example.com"))
	players, err = e.ListPlayers(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, players)
}

// TestEngine_FormalConflictRejectedAtUpsert tests that a conflicting reporting
// edge never reaches the store
func TestEngine_FormalConflictRejectedAtUpsert(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustCreatePlayer(t, e, "alice", "Alice", model.StatusNeutral)
	mustCreatePlayer(t, e, "bob", "Bob", model.StatusNeutral)
	mustCreatePlayer(t, e, "carol", "Carol", model.StatusNeutral)

	_, err := e.UpsertRelationship(ctx, testTenant, &model.RelationshipRequest{
		FromPlayerID: "alice", ToPlayerID: "bob", Kind: model.KindFormal,
	})
	require.NoError(t, err)

	// bob already reports to alice
	_, err = e.UpsertRelationship(ctx, testTenant, &model.RelationshipRequest{
		FromPlayerID: "carol", ToPlayerID: "bob", Kind: model.KindFormal,
	})
	require.Error(t, err)
	assert.True(t, graph.IsConflict(err), "expected a conflict error, got %v", err)

	// a cycle back up the chain
	_, err = e.UpsertRelationship(ctx, testTenant, &model.RelationshipRequest{
		FromPlayerID: "bob", ToPlayerID: "alice", Kind: model.KindFormal,
	})
	require.Error(t, err)
	assert.True(t, graph.IsConflict(err))

	// the rejected edges left the store untouched
	snap, err := e.Rebuild(ctx, testTenant, nil)
	require.NoError(t, err)
	assert.Len(t, snap.Edges, 1)
}

// TestEngine_RelationshipEditReplaces tests that re-upserting a pair edits
// the stored edge instead of stacking rows
func TestEngine_RelationshipEditReplaces(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustCreatePlayer(t, e, "alice", "Alice", model.StatusNeutral)
	mustCreatePlayer(t, e, "bob", "Bob", model.StatusNeutral)

	_, err := e.UpsertRelationship(ctx, testTenant, &model.RelationshipRequest{
		FromPlayerID: "alice", ToPlayerID: "bob", Kind: model.KindInformal, Type: "mentor", Strength: 8,
	})
	require.NoError(t, err)

	// the user edits the tie downward; the new value must win
	_, err = e.UpsertRelationship(ctx, testTenant, &model.RelationshipRequest{
		FromPlayerID: "alice", ToPlayerID: "bob", Kind: model.KindInformal, Type: "mentor", Strength: 2,
	})
	require.NoError(t, err)

	snap, err := e.Rebuild(ctx, testTenant, nil)
	require.NoError(t, err)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, 2.0, snap.Edges[0].Weight, "edited strength must take effect")

	// re-upserting the reporting edge must not double its weight
	for i := 0; i < 2; i++ {
		_, err = e.UpsertRelationship(ctx, testTenant, &model.RelationshipRequest{
			FromPlayerID: "alice", ToPlayerID: "bob", Kind: model.KindFormal,
		})
		require.NoError(t, err)
	}

	snap, err = e.Rebuild(ctx, testTenant, nil)
	require.NoError(t, err)

	formal := 0
	for _, edge := range snap.Edges {
		if edge.Kind == model.KindFormal {
			formal++
			assert.Equal(t, graph.DefaultFormalWeight, edge.Weight)
		}
	}
	assert.Equal(t, 1, formal, "duplicate formal upsert must not add a second edge")
	assert.Equal(t, graph.DefaultFormalWeight+2.0, snap.Adjacency()["alice"]["bob"])
}

// TestEngine_NotesRoundTrip tests the encrypt-on-write, explicit-decrypt-read
// path with a caller-held tenant key
func TestEngine_NotesRoundTrip(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustCreatePlayer(t, e, "alice", "Alice", model.StatusNeutral)

	key, err := encryption.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, e.SetPlayerNotes(ctx, testTenant, "alice", key, "drives the quarterly roadmap"))

	// the stored row carries only ciphertext
	players, err := e.ListPlayers(ctx, testTenant)
	require.NoError(t, err)
	require.NotNil(t, players[0].Notes)
	assert.NotContains(t, players[0].Notes.Ciphertext, "roadmap")

	notes, err := e.DecryptNotes(ctx, testTenant, key)
	require.NoError(t, err)
	assert.Equal(t, "drives the quarterly roadmap", notes["alice"])

	// the wrong key fails closed
	wrong, err := encryption.GenerateKey()
	require.NoError(t, err)
	_, err = e.DecryptNotes(ctx, testTenant, wrong)
	assert.Error(t, err)
}

// TestEngine_IngestRebuildReport tests the full pipeline from raw records to
// a narrated report
func TestEngine_IngestRebuildReport(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustCreatePlayer(t, e, "alice", "Alice", model.StatusAlly)
	mustCreatePlayer(t, e, "bob", "Bob", model.StatusNeutral)
	mustCreatePlayer(t, e, "carol", "Carol", model.StatusRival)

	now := time.Now().UTC()
	src := &staticSource{name: "messages", records: []normalizer.RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"alice", "bob"}, Timestamp: now.Add(-time.Hour), WeightHint: 1},
		{SourceType: model.SourceMessage, Participants: []string{"bob", "carol"}, Timestamp: now.Add(-2 * time.Hour), WeightHint: 1},
	}}

	result, err := e.Ingest(ctx, testTenant, src)
	require.NoError(t, err)
	assert.False(t, result.Partial())
	assert.Len(t, result.Events, 2)

	snap, err := e.Rebuild(ctx, testTenant, result)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Edges, 2)
	assert.Same(t, snap, e.Snapshot(testTenant))

	scores, err := e.Scores(testTenant)
	require.NoError(t, err)
	assert.Len(t, scores.Scores, 3)

	// second call hits the cache for the same snapshot
	again, err := e.Scores(testTenant)
	require.NoError(t, err)
	assert.Same(t, scores, again)

	report, err := e.Report(ctx, testTenant, nil)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, report.SnapshotID)
	assert.NotEmpty(t, report.Narrative, "template generator should narrate")

	// bob bridges alice and carol
	require.NotEmpty(t, report.Brokers)
	assert.Equal(t, "bob", report.Brokers[0].PlayerID)
	assert.Equal(t, insight.ReasonHighBetweenness, report.Brokers[0].Reason)

	// carol is a rival with influence
	require.NotEmpty(t, report.Risks)
	assert.Equal(t, "carol", report.Risks[0].PlayerID)
}

// TestEngine_PartialIngestMarksSnapshot tests failed-source propagation
func TestEngine_PartialIngestMarksSnapshot(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustCreatePlayer(t, e, "alice", "Alice", model.StatusNeutral)

	now := time.Now().UTC()
	good := &staticSource{name: "messages", records: []normalizer.RawRecord{
		{SourceType: model.SourceMessage, Participants: []string{"alice", "bob"}, Timestamp: now.Add(-time.Hour), WeightHint: 1},
	}}
	bad := &staticSource{name: "calendar", err: context.DeadlineExceeded}

	result, err := e.Ingest(ctx, testTenant, good, bad)
	require.NoError(t, err)
	assert.True(t, result.Partial())

	snap, err := e.Rebuild(ctx, testTenant, result)
	require.NoError(t, err)
	assert.True(t, snap.Partial)
	assert.Equal(t, []string{"calendar"}, snap.FailedSources)

	report, err := e.Report(ctx, testTenant, nil)
	require.NoError(t, err)
	assert.True(t, report.Partial)
}

// TestEngine_NoSnapshotYet tests the pre-first-build error paths
func TestEngine_NoSnapshotYet(t *testing.T) {
	e := testEngine(t)

	assert.Nil(t, e.Snapshot(testTenant))
	_, err := e.Scores(testTenant)
	assert.Error(t, err)
	_, err = e.Report(context.Background(), testTenant, nil)
	assert.Error(t, err)
}

// TestEngine_DeleteTenant tests the lifecycle end at the facade
func TestEngine_DeleteTenant(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustCreatePlayer(t, e, "alice", "Alice", model.StatusNeutral)
	_, err := e.Rebuild(ctx, testTenant, nil)
	require.NoError(t, err)

	require.NoError(t, e.DeleteTenant(testTenant))
	assert.Nil(t, e.Snapshot(testTenant))

	_, err = e.CreatePlayer(ctx, testTenant, &model.PlayerRequest{ID: "bob", Name: "Bob", InfluenceLevel: 5})
	assert.Error(t, err, "deleted tenant must not accept new players")
}
