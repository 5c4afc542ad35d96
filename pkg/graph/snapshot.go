package graph

import (
	"time"

	"github.com/subtexthq/powermap/pkg/model"
)

// Node is a player materialized into a snapshot.
type Node struct {
	PlayerID string `json:"player_id"`
	Label    string `json:"label"`
}

// Edge is a merged snapshot edge with its effective weight. Formal edges are
// directed manager -> report; informal and derived edges are undirected and
// stored with From as the lexicographically smaller endpoint.
type Edge struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Weight     float64                `json:"weight"`
	Kind       model.RelationshipKind `json:"kind"`
	Provenance model.Provenance       `json:"provenance"`
}

// Snapshot is an immutable, fully-built graph state. Once published it is
// never mutated, so concurrent readers need no locking.
type Snapshot struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	AsOf          time.Time `json:"as_of"`
	Nodes         []Node    `json:"nodes"`
	Edges         []Edge    `json:"edges"`
	// EventsAnalyzed counts the communication events that contributed weight,
	// after retention filtering. PeriodDays is the analysis window.
	EventsAnalyzed int      `json:"events_analyzed"`
	PeriodDays     int      `json:"period_days"`
	Partial        bool     `json:"partial"`
	FailedSources  []string `json:"failed_sources,omitempty"`
}

// HasNode reports whether the snapshot contains the given player.
func (s *Snapshot) HasNode(playerID string) bool {
	for _, n := range s.Nodes {
		if n.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Adjacency folds the snapshot into an undirected weighted adjacency map,
// summing parallel edges between the same pair. This is the view the metrics
// engine computes over.
func (s *Snapshot) Adjacency() map[string]map[string]float64 {
	adj := make(map[string]map[string]float64, len(s.Nodes))
	for _, n := range s.Nodes {
		adj[n.PlayerID] = make(map[string]float64)
	}
	for _, e := range s.Edges {
		if e.Weight <= 0 {
			continue
		}
		adj[e.From][e.To] += e.Weight
		adj[e.To][e.From] += e.Weight
	}
	return adj
}

// validate checks the node-superset invariant before a snapshot is published.
func (s *Snapshot) validate() error {
	nodes := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes[n.PlayerID] = struct{}{}
	}
	for _, e := range s.Edges {
		if _, ok := nodes[e.From]; !ok {
			return &BuildError{TenantID: s.TenantID, Reason: "edge references unknown node " + e.From}
		}
		if _, ok := nodes[e.To]; !ok {
			return &BuildError{TenantID: s.TenantID, Reason: "edge references unknown node " + e.To}
		}
	}
	return nil
}
