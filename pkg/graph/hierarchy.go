package graph

// Forest is the formal reporting hierarchy kept as explicit parent pointers:
// parent[report] = manager. A formal edge M -> C means C reports to M.
// Keeping the hierarchy separate from the weighted influence edges avoids
// conflating hard structure with soft signal.
type Forest struct {
	parent map[string]string
}

// NewForest creates an empty hierarchy forest.
func NewForest() *Forest {
	return &Forest{parent: make(map[string]string)}
}

// Insert records that report answers to manager. It rejects the edge with a
// ConflictError when the report already has a different manager or when the
// insertion would close a cycle; the forest is unchanged on rejection.
func (f *Forest) Insert(manager, report string) error {
	if manager == report {
		return &ConflictError{FromPlayerID: manager, ToPlayerID: report, Reason: "player cannot report to themselves"}
	}

	if existing, ok := f.parent[report]; ok && existing != manager {
		return &ConflictError{FromPlayerID: manager, ToPlayerID: report, Reason: "player already has a manager"}
	}

	// Walk from the proposed manager up the chain; reaching the report means
	// the report is already above the manager.
	for cur := manager; ; {
		p, ok := f.parent[cur]
		if !ok {
			break
		}
		if p == report {
			return &ConflictError{FromPlayerID: manager, ToPlayerID: report, Reason: "edge would create a reporting cycle"}
		}
		cur = p
	}

	f.parent[report] = manager
	return nil
}

// Parent returns the manager of the given player, if any.
func (f *Forest) Parent(playerID string) (string, bool) {
	p, ok := f.parent[playerID]
	return p, ok
}

// Remove deletes the report's manager link, if present.
func (f *Forest) Remove(report string) {
	delete(f.parent, report)
}

// Size returns the number of reporting links.
func (f *Forest) Size() int {
	return len(f.parent)
}

// Links returns all (manager, report) pairs.
func (f *Forest) Links() map[string]string {
	out := make(map[string]string, len(f.parent))
	for report, manager := range f.parent {
		out[report] = manager
	}
	return out
}
