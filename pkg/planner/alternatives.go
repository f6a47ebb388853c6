package planner

import (
	"sort"

	"github.com/riverwatch/evacroute/pkg/graph"
)

// jaccardDedupThreshold: a candidate alternative is kept only if its
// edge-set Jaccard similarity to every already-accepted path is below this.
const jaccardDedupThreshold = 0.85

// alternatives returns up to k-1 additional paths via Yen's k-shortest-paths
// over the risk-aware cost, deduplicated by edge-set Jaccard. The primary
// route counts as the first of the k paths.
func (p *Planner) alternatives(adj *adjacency, start, goal int64, profile Profile, primary *Route, k int) []*Route {
	accepted := []*Route{primary}
	var candidates []*Route

	// Spurs are generated once per accepted path; rejected candidates must
	// not retrigger generation or the loop would never drain.
	generatedFor := 0

	for len(accepted) < k {
		if generatedFor == len(accepted) {
			if len(candidates) == 0 {
				break
			}

			// Pick the cheapest candidate under the profile cost.
			sort.Slice(candidates, func(a, b int) bool {
				return pathCost(candidates[a], profile) < pathCost(candidates[b], profile)
			})
			next := candidates[0]
			candidates = candidates[1:]

			if isDuplicate(next, accepted) {
				continue
			}
			accepted = append(accepted, next)
			continue
		}
		generatedFor = len(accepted)
		prev := accepted[len(accepted)-1]

		// Spur from every node of the previous path except the last.
		for i := 0; i < len(prev.Nodes)-1; i++ {
			spurNode := prev.Nodes[i].ID
			rootEdges := prev.Edges[:i]

			bans := &banSet{
				edges: make(map[graph.EdgeKey]bool),
				nodes: make(map[int64]bool),
			}

			// Ban the next edge of every accepted path sharing this root.
			for _, path := range accepted {
				if len(path.Edges) > i && sameRoot(path.Edges[:i], rootEdges) {
					bans.edges[path.Edges[i].ID()] = true
				}
			}
			// Ban root nodes so the spur cannot loop back through them.
			for j := 0; j < i; j++ {
				bans.nodes[prev.Nodes[j].ID] = true
			}

			res, err := aStar(adj, spurNode, goal, profile, bans)
			if err != nil {
				continue
			}

			total := joinPaths(adj, rootEdges, res)
			if total == nil {
				continue
			}
			candidates = append(candidates, total)
		}
	}

	if len(accepted) <= 1 {
		return nil
	}
	return accepted[1:]
}

// sameRoot reports whether two edge prefixes are identical.
func sameRoot(a, b []graph.Edge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID() != b[i].ID() {
			return false
		}
	}
	return true
}

// joinPaths concatenates a root edge prefix with a spur search result into
// one Route.
func joinPaths(adj *adjacency, rootEdges []graph.Edge, spur searchResult) *Route {
	combined := searchResult{blockedSeen: spur.blockedSeen}
	combined.edgePath = append(combined.edgePath, rootEdges...)
	combined.edgePath = append(combined.edgePath, spur.edgePath...)

	if len(combined.edgePath) == 0 {
		return nil
	}

	combined.nodePath = []int64{combined.edgePath[0].U}
	for _, e := range combined.edgePath {
		combined.nodePath = append(combined.nodePath, e.V)
	}

	return buildRoute(adj, combined)
}

// pathCost is the total virtual-meters cost of a route under p.
func pathCost(r *Route, p Profile) float64 {
	total := 0.0
	for _, e := range r.Edges {
		c, passable := edgeCost(e, p)
		if !passable {
			return pathCostInf
		}
		total += c
	}
	return total
}

const pathCostInf = 1e18

// isDuplicate reports whether candidate overlaps any accepted path at or
// above the Jaccard threshold on edge sets.
func isDuplicate(candidate *Route, accepted []*Route) bool {
	cset := candidate.edgeKeySet()
	for _, path := range accepted {
		if jaccard(cset, path.edgeKeySet()) >= jaccardDedupThreshold {
			return true
		}
	}
	return false
}

func jaccard(a, b map[graph.EdgeKey]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}
