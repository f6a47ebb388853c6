package planner

import (
	"container/heap"
	"math"

	"github.com/riverwatch/evacroute/pkg/graph"
)

// DefaultMaxSnapM is the default endpoint-snap radius.
const DefaultMaxSnapM = 500.0

// Coord is a WGS84 point.
type Coord struct {
	Lat float64
	Lon float64
}

// Planner answers risk-aware shortest-path queries over the graph store.
// It only ever reads the graph, taking one consistent snapshot per query,
// so a concurrent fusion commit is observed entirely or not at all.
type Planner struct {
	g        *graph.Graph
	maxSnapM float64
}

// Config configures a Planner.
type Config struct {
	Graph    *graph.Graph
	MaxSnapM float64
}

// New returns a Planner over g.
func New(cfg Config) *Planner {
	maxSnap := cfg.MaxSnapM
	if maxSnap <= 0 {
		maxSnap = DefaultMaxSnapM
	}
	return &Planner{g: cfg.Graph, maxSnapM: maxSnap}
}

// adjacency is the per-query read snapshot: for every (u, v) pair the
// minimum-cost edge across parallel keys under the active profile, bucketed
// by source node.
type adjacency struct {
	out   map[int64][]graph.Edge
	nodes map[int64]graph.Node
}

// snapshot builds the adjacency view for one query. Parallel edges between
// the same (u, v) collapse to the cheapest key; an impassable parallel edge
// loses to any passable one.
func (p *Planner) snapshot(profile Profile) (*adjacency, int) {
	edges := p.g.AllEdges()
	nodes := p.g.AllNodes()

	nodeMap := make(map[int64]graph.Node, len(nodes))
	for _, n := range nodes {
		nodeMap[n.ID] = n
	}

	type pair struct{ u, v int64 }
	best := make(map[pair]graph.Edge, len(edges))
	blocked := 0
	for _, e := range edges {
		cost, passable := edgeCost(e, profile)
		if !passable {
			blocked++
		}
		k := pair{e.U, e.V}
		cur, ok := best[k]
		if !ok {
			best[k] = e
			continue
		}
		curCost, _ := edgeCost(cur, profile)
		if cost < curCost {
			best[k] = e
		}
	}

	out := make(map[int64][]graph.Edge, len(nodeMap))
	for _, e := range best {
		out[e.U] = append(out[e.U], e)
	}
	return &adjacency{out: out, nodes: nodeMap}, blocked
}

// snapToNode returns the nearest graph node to c within maxSnapM.
func (p *Planner) snapToNode(c Coord) (graph.Node, bool) {
	bestDist := math.Inf(1)
	var best graph.Node
	found := false
	for _, n := range p.g.AllNodes() {
		d := graph.HaversineMeters(c.Lat, c.Lon, n.Lat, n.Lon)
		if d < bestDist {
			bestDist = d
			best = n
			found = true
		}
	}
	if !found || bestDist > p.maxSnapM {
		return graph.Node{}, false
	}
	return best, true
}

// pqItem is one frontier entry. Ties on f break toward the lower h, which
// prefers nodes geometrically closer to the goal.
type pqItem struct {
	node int64
	f    float64
	h    float64
	g    float64
}

type frontier []pqItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].f != f[j].f {
		return f[i].f < f[j].f
	}
	return f[i].h < f[j].h
}
func (f frontier) Swap(i, j int)       { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x interface{}) { *f = append(*f, x.(pqItem)) }
func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// searchResult carries the raw A* outcome before route metrics are built.
type searchResult struct {
	nodePath    []int64
	edgePath    []graph.Edge
	blockedSeen int
}

// banSet excludes specific edges and nodes from a search, used by the
// alternative-route spur computation. Nil bans nothing.
type banSet struct {
	edges map[graph.EdgeKey]bool
	nodes map[int64]bool
}

func (b *banSet) bansEdge(k graph.EdgeKey) bool {
	return b != nil && b.edges != nil && b.edges[k]
}

func (b *banSet) bansNode(id int64) bool {
	return b != nil && b.nodes != nil && b.nodes[id]
}

// aStar runs the search from start to goal over adj. The Haversine
// heuristic is an absolute lower bound on remaining physical length, and
// edge cost is at least length times WDist, so it is admissible whenever
// WDist >= 1.
func aStar(adj *adjacency, start, goal int64, profile Profile, bans *banSet) (searchResult, error) {
	goalNode, ok := adj.nodes[goal]
	if !ok {
		return searchResult{}, ErrNoPath
	}

	h := func(id int64) float64 {
		n := adj.nodes[id]
		return graph.HaversineMeters(n.Lat, n.Lon, goalNode.Lat, goalNode.Lon) * math.Min(profile.WDist, 1.0)
	}

	gScore := map[int64]float64{start: 0}
	cameFrom := make(map[int64]graph.Edge)
	closed := make(map[int64]bool)
	blockedSeen := 0

	pq := &frontier{{node: start, f: h(start), h: h(start), g: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if closed[cur.node] {
			continue
		}
		if cur.node == goal {
			return reconstruct(cameFrom, start, goal, blockedSeen), nil
		}
		closed[cur.node] = true

		for _, e := range adj.out[cur.node] {
			if bans.bansEdge(e.ID()) || bans.bansNode(e.V) {
				continue
			}
			cost, passable := edgeCost(e, profile)
			if !passable {
				blockedSeen++
				continue
			}
			tentative := gScore[cur.node] + cost
			if prev, ok := gScore[e.V]; ok && tentative >= prev {
				continue
			}
			gScore[e.V] = tentative
			cameFrom[e.V] = e
			hv := h(e.V)
			heap.Push(pq, pqItem{node: e.V, f: tentative + hv, h: hv, g: tentative})
		}
	}

	return searchResult{blockedSeen: blockedSeen}, ErrNoPath
}

func reconstruct(cameFrom map[int64]graph.Edge, start, goal int64, blockedSeen int) searchResult {
	var edges []graph.Edge
	nodePath := []int64{goal}
	cur := goal
	for cur != start {
		e := cameFrom[cur]
		edges = append(edges, e)
		cur = e.U
		nodePath = append(nodePath, cur)
	}

	// Reverse into start→goal order.
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	for i, j := 0, len(nodePath)-1; i < j; i, j = i+1, j-1 {
		nodePath[i], nodePath[j] = nodePath[j], nodePath[i]
	}

	return searchResult{nodePath: nodePath, edgePath: edges, blockedSeen: blockedSeen}
}

// Route computes a risk-aware route between two coordinates.
func (p *Planner) Route(start, end Coord, prefs Preferences) (*Route, error) {
	if p.g == nil || p.g.NodeCount() == 0 {
		return nil, ErrGraphNotReady
	}

	profile := ResolveProfile(prefs)

	startNode, ok := p.snapToNode(start)
	if !ok {
		return nil, ErrNoNearbyNode
	}
	endNode, ok := p.snapToNode(end)
	if !ok {
		return nil, ErrNoNearbyNode
	}

	adj, _ := p.snapshot(profile)

	res, err := aStar(adj, startNode.ID, endNode.ID, profile, nil)
	if err != nil {
		return nil, err
	}

	route := buildRoute(adj, res)

	if prefs.Alternatives >= 2 {
		route.Alternatives = p.alternatives(adj, startNode.ID, endNode.ID, profile, route, prefs.Alternatives)
	}

	return route, nil
}
