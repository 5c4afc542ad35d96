package algorithms

// Constraint computes Burt's network constraint for one node: how much the
// node's contacts are themselves interconnected. Low constraint marks a
// broker spanning a structural hole; high constraint means the neighborhood
// is closed. Returns nil for nodes with no positive-weight neighbors, where
// the measure is undefined.
//
//	constraint(i) = sum_j (p_ij + sum_q p_iq * p_qj)^2
//
// with p_ij the tie strength from i to j normalized by i's total strength,
// and q ranging over i's other neighbors. O(d^2) per node.
func Constraint(adj map[string]map[string]float64, id string) *float64 {
	neighbors := adj[id]

	total := 0.0
	for _, w := range neighbors {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return nil
	}

	// proportion of i's energy invested in each neighbor
	p := func(from, to string) float64 {
		row := adj[from]
		if len(row) == 0 {
			return 0
		}
		sum := 0.0
		for _, w := range row {
			if w > 0 {
				sum += w
			}
		}
		if sum == 0 {
			return 0
		}
		return row[to] / sum
	}

	constraint := 0.0
	for j, wj := range neighbors {
		if wj <= 0 {
			continue
		}
		direct := wj / total
		indirect := 0.0
		for q, wq := range neighbors {
			if wq <= 0 || q == j {
				continue
			}
			indirect += (wq / total) * p(q, j)
		}
		term := direct + indirect
		constraint += term * term
	}

	return &constraint
}
