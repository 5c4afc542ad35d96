package insight

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/subtexthq/powermap/pkg/algorithms"
	"github.com/subtexthq/powermap/pkg/graph"
	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/model"
)

// ReasonCode is a machine-readable explanation attached to every ranked
// entry, so the text layer can render prose without re-deriving the analysis.
type ReasonCode string

const (
	ReasonHighBetweenness    ReasonCode = "high_betweenness"
	ReasonHighConstraint     ReasonCode = "high_constraint"
	ReasonAdversaryInfluence ReasonCode = "adversary_high_centrality"
	ReasonAllyUnderused      ReasonCode = "ally_low_centrality"
)

// Entry is one ranked finding.
type Entry struct {
	PlayerID string     `json:"player_id"`
	Label    string     `json:"label"`
	Reason   ReasonCode `json:"reason"`
	Metric   float64    `json:"metric"`
	// NoteHint is a short excerpt of the player's decrypted notes, present
	// only when the caller explicitly supplied decrypted notes.
	NoteHint string `json:"note_hint,omitempty"`
}

// Stats summarizes what the report was computed from.
type Stats struct {
	Players    int `json:"players"`
	Edges      int `json:"edges"`
	Events     int `json:"events"`
	PeriodDays int `json:"period_days"`
}

// Report is the ranked insight output for one snapshot.
type Report struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	SnapshotID     string    `json:"snapshot_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	Brokers        []Entry   `json:"brokers"`
	Opportunities  []Entry   `json:"opportunities"`
	Risks          []Entry   `json:"risks"`
	Underleveraged []Entry   `json:"underleveraged"`
	Partial        bool      `json:"partial"`
	FailedSources  []string  `json:"failed_sources,omitempty"`
	Stats          Stats     `json:"stats"`
	Narrative      string    `json:"narrative,omitempty"`
}

// DefaultTopK is the default length of each ranked list.
const DefaultTopK = 5

// underusedDegreeCeiling marks an ally as underleveraged when their
// normalized degree sits at or below this value.
const underusedDegreeCeiling = 0.2

// noteHintLength caps how much decrypted note text an entry carries.
const noteHintLength = 140

// Composer merges metrics, player metadata and optional decrypted notes into
// a ranked report.
type Composer struct {
	topK   int
	logger logging.Logger
}

// NewComposer creates a composer.
func NewComposer(topK int, logger logging.Logger) *Composer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Composer{topK: topK, logger: logger}
}

// Compose builds the report. decryptedNotes may be nil; the report then
// simply omits note-derived context instead of failing. Decryption is never
// performed here.
func (c *Composer) Compose(snap *graph.Snapshot, result *algorithms.Result, players []model.Player, decryptedNotes map[string]string) *Report {
	byID := make(map[string]model.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	label := func(playerID string) string {
		if p, ok := byID[playerID]; ok && p.Name != "" {
			return p.Name
		}
		for _, n := range snap.Nodes {
			if n.PlayerID == playerID {
				return n.Label
			}
		}
		return playerID
	}

	entry := func(s algorithms.Score, reason ReasonCode, metric float64) Entry {
		e := Entry{
			PlayerID: s.PlayerID,
			Label:    label(s.PlayerID),
			Reason:   reason,
			Metric:   metric,
		}
		if decryptedNotes != nil {
			if note, ok := decryptedNotes[s.PlayerID]; ok && note != "" {
				if len(note) > noteHintLength {
					// Back up to a rune boundary so the hint stays valid UTF-8.
					cut := noteHintLength
					for cut > 0 && !utf8.RuneStart(note[cut]) {
						cut--
					}
					note = note[:cut]
				}
				e.NoteHint = note
			}
		}
		return e
	}

	report := &Report{
		ID:            uuid.NewString(),
		TenantID:      snap.TenantID,
		SnapshotID:    snap.ID,
		GeneratedAt:   time.Now().UTC(),
		Partial:       snap.Partial,
		FailedSources: snap.FailedSources,
		Stats: Stats{
			Players:    len(snap.Nodes),
			Edges:      len(snap.Edges),
			Events:     snap.EventsAnalyzed,
			PeriodDays: snap.PeriodDays,
		},
	}

	// Brokers: highest betweenness, the people most shortest paths run
	// through.
	brokers := filterSort(result.Scores,
		func(s algorithms.Score) (float64, bool) { return s.Betweenness, s.Betweenness > 0 })
	for _, s := range top(brokers, c.topK) {
		report.Brokers = append(report.Brokers, entry(s, ReasonHighBetweenness, s.Betweenness))
	}

	// Opportunities: highest structural constraint, players locked inside a
	// closed cluster the user could bridge around.
	opportunities := filterSort(result.Scores,
		func(s algorithms.Score) (float64, bool) {
			if s.Constraint == nil {
				return 0, false
			}
			return *s.Constraint, true
		})
	for _, s := range top(opportunities, c.topK) {
		report.Opportunities = append(report.Opportunities, entry(s, ReasonHighConstraint, *s.Constraint))
	}

	// Risks: adversaries with real influence.
	risks := filterSort(result.Scores,
		func(s algorithms.Score) (float64, bool) {
			p, ok := byID[s.PlayerID]
			if !ok || !p.Status.IsRisk() {
				return 0, false
			}
			m := s.Degree
			if s.Betweenness > m {
				m = s.Betweenness
			}
			return m, m > 0
		})
	for _, s := range top(risks, c.topK) {
		m := s.Degree
		if s.Betweenness > m {
			m = s.Betweenness
		}
		report.Risks = append(report.Risks, entry(s, ReasonAdversaryInfluence, m))
	}

	// Underleveraged: allies the user is not using, isolated or near it.
	// Ranked weakest-connected first.
	underused := filterSort(result.Scores,
		func(s algorithms.Score) (float64, bool) {
			p, ok := byID[s.PlayerID]
			if !ok || p.Status != model.StatusAlly {
				return 0, false
			}
			if s.Degree > underusedDegreeCeiling {
				return 0, false
			}
			return 1 - s.Degree, true
		})
	for _, s := range top(underused, c.topK) {
		report.Underleveraged = append(report.Underleveraged, entry(s, ReasonAllyUnderused, s.Degree))
	}

	return report
}

// filterSort selects scores the keep function accepts and sorts them by its
// metric, descending, with player id as the deterministic tiebreak.
func filterSort(scores []algorithms.Score, keep func(algorithms.Score) (float64, bool)) []algorithms.Score {
	type ranked struct {
		score  algorithms.Score
		metric float64
	}
	kept := make([]ranked, 0, len(scores))
	for _, s := range scores {
		if m, ok := keep(s); ok {
			kept = append(kept, ranked{score: s, metric: m})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].metric != kept[j].metric {
			return kept[i].metric > kept[j].metric
		}
		return kept[i].score.PlayerID < kept[j].score.PlayerID
	})
	out := make([]algorithms.Score, len(kept))
	for i, r := range kept {
		out[i] = r.score
	}
	return out
}

func top(scores []algorithms.Score, k int) []algorithms.Score {
	if len(scores) > k {
		return scores[:k]
	}
	return scores
}
