package graph

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/model"
)

// MergePolicy decides how a manual informal weight and an accumulated
// communication-derived weight combine for the same pair.
type MergePolicy string

const (
	// MergeMax treats manual input as a floor that decay never dilutes.
	MergeMax MergePolicy = "max"
	// MergeSum adds the two contributions.
	MergeSum MergePolicy = "sum"
	// MergeManual lets a manual edge override the derived weight entirely.
	MergeManual MergePolicy = "manual"
)

// DefaultFormalWeight is the fixed weight of a reporting edge. Hierarchy is
// certain, so it sits at the top of the 1-10 strength scale.
const DefaultFormalWeight = 10.0

// BuilderConfig holds the knobs for snapshot construction.
type BuilderConfig struct {
	Retention    time.Duration
	HalfLife     time.Duration
	Policy       MergePolicy
	FormalWeight float64
}

// DefaultBuilderConfig returns the production defaults: 90-day retention,
// 30-day half-life, max merge policy.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Retention:    90 * 24 * time.Hour,
		HalfLife:     30 * 24 * time.Hour,
		Policy:       MergeMax,
		FormalWeight: DefaultFormalWeight,
	}
}

// Builder materializes per-tenant graph snapshots. It is stateless between
// calls and deterministic for identical inputs and AsOf time.
type Builder struct {
	cfg    BuilderConfig
	logger logging.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(cfg BuilderConfig, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Policy == "" {
		cfg.Policy = MergeMax
	}
	if cfg.FormalWeight <= 0 {
		cfg.FormalWeight = DefaultFormalWeight
	}
	return &Builder{cfg: cfg, logger: logger}
}

// BuildInput carries everything a build needs. Partial and FailedSources are
// supplied by the ingestion layer when a source missed its deadline.
type BuildInput struct {
	TenantID      string
	Players       []model.Player
	Relationships []model.Relationship
	Events        []model.CommunicationEvent
	AsOf          time.Time
	Partial       bool
	FailedSources []string
}

// pairKey is an unordered player pair, a < b.
type pairKey struct {
	a, b string
}

func makePair(x, y string) pairKey {
	if x < y {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

// Build produces an immutable snapshot from the given relationships, events
// and declared players. An empty input is valid and yields an empty snapshot.
func (b *Builder) Build(in BuildInput) (*Snapshot, error) {
	// Node set: declared players first (isolated ones are retained as
	// zero-degree nodes), then anyone referenced by an edge or event.
	labels := make(map[string]string)
	for _, p := range in.Players {
		labels[p.ID] = p.Name
	}
	addNode := func(id string) {
		if _, ok := labels[id]; !ok {
			labels[id] = id
		}
	}

	// Formal hierarchy: replay into a parent-pointer forest so a corrupted
	// relationship set cannot publish a cyclic hierarchy.
	forest := NewForest()
	formal := make([]model.Relationship, 0)
	informal := make([]model.Relationship, 0)
	for _, r := range in.Relationships {
		switch r.Kind {
		case model.KindFormal:
			formal = append(formal, r)
		default:
			informal = append(informal, r)
		}
	}
	sort.Slice(formal, func(i, j int) bool {
		if !formal[i].CreatedAt.Equal(formal[j].CreatedAt) {
			return formal[i].CreatedAt.Before(formal[j].CreatedAt)
		}
		return formal[i].ID < formal[j].ID
	})

	edges := make([]Edge, 0, len(in.Relationships))
	for _, r := range formal {
		// A duplicate row for an already-recorded reporting link must not
		// emit a second edge and double the adjacency weight.
		if existing, ok := forest.Parent(r.ToPlayerID); ok && existing == r.FromPlayerID {
			continue
		}
		if err := forest.Insert(r.FromPlayerID, r.ToPlayerID); err != nil {
			return nil, err
		}
		addNode(r.FromPlayerID)
		addNode(r.ToPlayerID)
		edges = append(edges, Edge{
			From:       r.FromPlayerID,
			To:         r.ToPlayerID,
			Weight:     b.cfg.FormalWeight,
			Kind:       model.KindFormal,
			Provenance: model.ProvenanceManual,
		})
	}

	// Manual informal edges: strongest declared tie wins per pair.
	manual := make(map[pairKey]float64)
	for _, r := range informal {
		if r.Strength < 0 {
			return nil, ErrNegativeWeight
		}
		addNode(r.FromPlayerID)
		addNode(r.ToPlayerID)
		key := makePair(r.FromPlayerID, r.ToPlayerID)
		if w := float64(r.Strength); w > manual[key] {
			manual[key] = w
		}
	}

	// Communication-derived edges: each event spreads its decayed weight over
	// every participant pair; contributions for a pair sum.
	derived := make(map[pairKey]float64)
	eventsAnalyzed := 0
	for _, e := range in.Events {
		if e.WeightHint < 0 {
			return nil, ErrNegativeWeight
		}
		hint := e.WeightHint
		if hint == 0 {
			hint = 1.0
		}
		factor := Decay(in.AsOf.Sub(e.Timestamp), b.cfg.HalfLife, b.cfg.Retention)
		if factor == 0 {
			continue
		}
		eventsAnalyzed++
		for i := 0; i < len(e.Participants); i++ {
			addNode(e.Participants[i])
			for j := i + 1; j < len(e.Participants); j++ {
				derived[makePair(e.Participants[i], e.Participants[j])] += hint * factor
			}
		}
	}

	merged, err := mergeWeights(b.cfg.Policy, manual, derived)
	if err != nil {
		return nil, err
	}
	edges = append(edges, merged...)

	nodes := make([]Node, 0, len(labels))
	for id, label := range labels {
		nodes = append(nodes, Node{PlayerID: id, Label: label})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].PlayerID < nodes[j].PlayerID })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Kind < edges[j].Kind
	})

	snap := &Snapshot{
		ID:             uuid.NewString(),
		TenantID:       in.TenantID,
		AsOf:           in.AsOf,
		Nodes:          nodes,
		Edges:          edges,
		EventsAnalyzed: eventsAnalyzed,
		PeriodDays:     int(b.cfg.Retention / (24 * time.Hour)),
		Partial:        in.Partial,
		FailedSources:  in.FailedSources,
	}

	if err := snap.validate(); err != nil {
		return nil, err
	}

	b.logger.Debug("snapshot built",
		logging.TenantID(in.TenantID),
		logging.SnapshotID(snap.ID),
		logging.Int("nodes", len(snap.Nodes)),
		logging.Int("edges", len(snap.Edges)),
		logging.Bool("partial", snap.Partial))

	return snap, nil
}

// mergeWeights combines manual and derived weights per pair under the policy
// and tags each edge with its provenance.
func mergeWeights(policy MergePolicy, manual, derived map[pairKey]float64) ([]Edge, error) {
	pairs := make(map[pairKey]struct{}, len(manual)+len(derived))
	for k := range manual {
		pairs[k] = struct{}{}
	}
	for k := range derived {
		pairs[k] = struct{}{}
	}

	edges := make([]Edge, 0, len(pairs))
	for k := range pairs {
		mw, hasManual := manual[k]
		dw, hasDerived := derived[k]

		var weight float64
		switch policy {
		case MergeMax:
			weight = mw
			if dw > weight {
				weight = dw
			}
		case MergeSum:
			weight = mw + dw
		case MergeManual:
			if hasManual {
				weight = mw
			} else {
				weight = dw
			}
		default:
			return nil, ErrUnknownPolicy
		}

		prov := model.ProvenanceManual
		switch {
		case hasManual && hasDerived:
			prov = model.ProvenanceBoth
		case hasDerived:
			prov = model.ProvenanceDerived
		}

		edges = append(edges, Edge{
			From:       k.a,
			To:         k.b,
			Weight:     weight,
			Kind:       model.KindInformal,
			Provenance: prov,
		})
	}
	return edges, nil
}
