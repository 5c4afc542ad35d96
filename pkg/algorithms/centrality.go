package algorithms

import (
	"container/heap"
	"math"
	"sort"

	"github.com/subtexthq/powermap/pkg/graph"
)

// Score holds the per-player metrics for one snapshot. Degree and betweenness
// are normalized to [0,1] within the snapshot; constraint is reported raw and
// is nil for zero-degree players (undefined, never 0 or NaN).
type Score struct {
	PlayerID    string   `json:"player_id"`
	Degree      float64  `json:"degree"`
	Betweenness float64  `json:"betweenness"`
	Constraint  *float64 `json:"constraint"`
}

// Result ties a set of scores to the exact snapshot they were computed from.
type Result struct {
	SnapshotID string  `json:"snapshot_id"`
	Scores     []Score `json:"scores"`
}

// ScoreFor returns the score for a player, if present.
func (r *Result) ScoreFor(playerID string) (Score, bool) {
	for _, s := range r.Scores {
		if s.PlayerID == playerID {
			return s, true
		}
	}
	return Score{}, false
}

// Compute is a pure function over an immutable snapshot. Output ordering is
// deterministic (players sorted by id).
func Compute(snap *graph.Snapshot) *Result {
	adj := snap.Adjacency()

	ids := make([]string, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	degree := degreeStrength(adj, ids)
	betweenness := brandesBetweenness(adj, ids)

	normalizeByMax(degree, ids)
	normalizeMinMax(betweenness, ids)

	scores := make([]Score, 0, len(ids))
	for _, id := range ids {
		scores = append(scores, Score{
			PlayerID:    id,
			Degree:      degree[id],
			Betweenness: betweenness[id],
			Constraint:  Constraint(adj, id),
		})
	}

	return &Result{SnapshotID: snap.ID, Scores: scores}
}

// degreeStrength sums incident edge weights per node.
func degreeStrength(adj map[string]map[string]float64, ids []string) map[string]float64 {
	strength := make(map[string]float64, len(ids))
	for _, id := range ids {
		total := 0.0
		for _, w := range adj[id] {
			total += w
		}
		strength[id] = total
	}
	return strength
}

// distItem is a priority queue entry for Dijkstra.
type distItem struct {
	node string
	dist float64
}

// distQueue is a min-heap keyed by tentative distance.
type distQueue []distItem

func (q distQueue) Len() int           { return len(q) }
func (q distQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q distQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *distQueue) Push(x any) {
	*q = append(*q, x.(distItem))
}

func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// Path lengths are sums of 1/weight terms and accumulate float error, so
// shortest-path ties compare within this tolerance.
const distEpsilon = 1e-9

// brandesBetweenness runs a weighted Brandes pass from every node. Edge
// weights become distances via 1/weight, so stronger ties form shorter paths.
// Ties split fractional credit across all shortest paths rather than picking
// one, and cross-component pairs contribute nothing.
func brandesBetweenness(adj map[string]map[string]float64, ids []string) map[string]float64 {
	betweenness := make(map[string]float64, len(ids))
	for _, id := range ids {
		betweenness[id] = 0.0
	}

	for _, source := range ids {
		stack := make([]string, 0, len(ids))
		preds := make(map[string][]string, len(ids))
		sigma := make(map[string]float64, len(ids))
		dist := make(map[string]float64, len(ids))
		for _, id := range ids {
			sigma[id] = 0.0
			dist[id] = math.Inf(1)
		}
		sigma[source] = 1.0
		dist[source] = 0.0

		pq := &distQueue{{node: source, dist: 0.0}}
		heap.Init(pq)
		settled := make(map[string]bool, len(ids))

		for pq.Len() > 0 {
			item := heap.Pop(pq).(distItem)
			v := item.node
			if settled[v] {
				continue
			}
			settled[v] = true
			stack = append(stack, v)

			for w, weight := range adj[v] {
				if weight <= 0 {
					continue
				}
				nd := dist[v] + 1.0/weight
				switch {
				case nd < dist[w]-distEpsilon:
					dist[w] = nd
					sigma[w] = sigma[v]
					preds[w] = append(preds[w][:0], v)
					heap.Push(pq, distItem{node: w, dist: nd})
				case math.Abs(nd-dist[w]) <= distEpsilon && !settled[w] && w != source:
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		// Back-propagation: accumulate pair dependencies onto interior nodes
		delta := make(map[string]float64, len(stack))
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += (sigma[v] / sigma[w]) * (1.0 + delta[w])
			}
			if w != source {
				betweenness[w] += delta[w]
			}
		}
	}

	// Undirected graph: every pair was counted from both endpoints
	for id := range betweenness {
		betweenness[id] /= 2.0
	}

	return betweenness
}

// normalizeByMax scales values so the largest becomes 1. All-zero input and
// single-node snapshots stay at 0.
func normalizeByMax(values map[string]float64, ids []string) {
	maxVal := 0.0
	for _, id := range ids {
		if values[id] > maxVal {
			maxVal = values[id]
		}
	}
	if maxVal == 0 || len(ids) <= 1 {
		for _, id := range ids {
			values[id] = 0.0
		}
		return
	}
	for _, id := range ids {
		values[id] /= maxVal
	}
}

// normalizeMinMax rescales values onto [0,1] within the snapshot.
func normalizeMinMax(values map[string]float64, ids []string) {
	if len(ids) == 0 {
		return
	}
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, id := range ids {
		v := values[id]
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal-minVal < distEpsilon {
		for _, id := range ids {
			values[id] = 0.0
		}
		return
	}
	for _, id := range ids {
		values[id] = (values[id] - minVal) / (maxVal - minVal)
	}
}
