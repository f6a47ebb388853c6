// Package verify runs the system's invariants as explicit, callable checks
// so the orchestrator can assert tick quiescence in debug/CI builds, not
// only in the test suite. Any violation of the risk-bounds or
// index-consistency invariants is an internal bug and fatal for the tick.
package verify

import (
	"fmt"

	"github.com/riverwatch/evacroute/pkg/graph"
)

// Verifier checks graph-level invariants between ticks
type Verifier struct {
	g *graph.Graph
}

// New creates a new verifier over g
func New(g *graph.Graph) *Verifier {
	return &Verifier{g: g}
}

// Violation describes one failed invariant check
type Violation struct {
	Invariant string
	Detail    string
}

// Result contains the outcome of a verification pass
type Result struct {
	Clean      bool
	Violations []Violation
}

func (r *Result) add(invariant, format string, args ...interface{}) {
	r.Clean = false
	r.Violations = append(r.Violations, Violation{
		Invariant: invariant,
		Detail:    fmt.Sprintf(format, args...),
	})
}

// VerifyRiskBounds checks that every edge carries a risk in [0,1] and a
// positive physical length.
func (v *Verifier) VerifyRiskBounds() *Result {
	result := &Result{Clean: true}

	for _, e := range v.g.AllEdges() {
		if e.RiskScore < 0 || e.RiskScore > 1 {
			result.add("risk_bounds", "edge (%d,%d,%d) has risk %f", e.U, e.V, e.Key, e.RiskScore)
		}
		if e.LengthM <= 0 {
			result.add("edge_length", "edge (%d,%d,%d) has length_m %f", e.U, e.V, e.Key, e.LengthM)
		}
	}

	return result
}

// VerifySpatialIndexConsistency checks that the spatial index and the edge
// set are in one-to-one correspondence.
func (v *Verifier) VerifySpatialIndexConsistency() *Result {
	result := &Result{Clean: true}

	edgeSet := make(map[graph.EdgeKey]bool)
	for _, e := range v.g.AllEdges() {
		edgeSet[e.ID()] = true
	}

	indexed := make(map[graph.EdgeKey]int)
	for _, k := range v.g.IndexedEdges() {
		indexed[k]++
		if !edgeSet[k] {
			result.add("index_consistency", "index references missing edge (%d,%d,%d)", k.U, k.V, k.Key)
		}
		if indexed[k] > 1 {
			result.add("index_consistency", "edge (%d,%d,%d) indexed %d times", k.U, k.V, k.Key, indexed[k])
		}
	}

	for k := range edgeSet {
		if indexed[k] == 0 {
			result.add("index_consistency", "edge (%d,%d,%d) missing from index", k.U, k.V, k.Key)
		}
	}

	return result
}

// VerifyMonotoneDecay checks that no edge's risk increased between two
// snapshots taken across a tick that received no inputs: with spatial decay
// active, risk must only fall.
func (v *Verifier) VerifyMonotoneDecay(before, after map[graph.EdgeKey]float64) *Result {
	result := &Result{Clean: true}

	const tolerance = 1e-12
	for k, prev := range before {
		curr, ok := after[k]
		if !ok {
			continue
		}
		if curr > prev+tolerance {
			result.add("monotone_decay", "edge (%d,%d,%d) risk rose %f → %f on a silent tick",
				k.U, k.V, k.Key, prev, curr)
		}
	}

	return result
}

// VerifyAll runs the quiescence checks that need no history
func (v *Verifier) VerifyAll() *Result {
	result := &Result{Clean: true}

	for _, r := range []*Result{
		v.VerifyRiskBounds(),
		v.VerifySpatialIndexConsistency(),
	} {
		if !r.Clean {
			result.Clean = false
			result.Violations = append(result.Violations, r.Violations...)
		}
	}

	return result
}

// Error converts a dirty result into an error for the orchestrator's
// fatal-for-the-tick path; a clean result yields nil.
func (r *Result) Error() error {
	if r.Clean {
		return nil
	}
	first := r.Violations[0]
	return fmt.Errorf("verify: %d invariant violation(s), first: %s: %s",
		len(r.Violations), first.Invariant, first.Detail)
}
