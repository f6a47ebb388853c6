package graph

import "fmt"

// Validator runs structural checks over a source document before Load
// commits it. Issues Load would reject are collected in Errors; anything
// odd that the loader itself does not reject outright goes to Warnings.
type Validator struct {
	Warnings []string
	Errors   []string
}

// NewValidator returns a Validator ready to use.
func NewValidator() *Validator {
	return &Validator{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

// Validate checks raw source bytes before they are handed to Load. Fatal
// issues (missing endpoints, length_m <= 0) are reported as errors here so
// callers can decide whether to abort before the heavier Load pass; Load
// re-checks the same invariants and is the authoritative enforcement point.
func (v *Validator) Validate(data []byte) error {
	v.Warnings = v.Warnings[:0]
	v.Errors = v.Errors[:0]

	doc, err := parseForValidation(data)
	if err != nil {
		v.Errors = append(v.Errors, err.Error())
		return fmt.Errorf("graph: validation failed with %d errors", len(v.Errors))
	}

	nodeIDs := make(map[int64]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if nodeIDs[n.ID] {
			v.Warnings = append(v.Warnings, fmt.Sprintf("node id %d is duplicated", n.ID))
		}
		nodeIDs[n.ID] = true
		if n.Lat < -90 || n.Lat > 90 || n.Lon < -180 || n.Lon > 180 {
			v.Errors = append(v.Errors, fmt.Sprintf("node %d has out-of-range coordinates", n.ID))
		}
	}

	seenKeys := make(map[EdgeKey]bool, len(doc.Edges))
	for i, e := range doc.Edges {
		if !nodeIDs[e.U] || !nodeIDs[e.V] {
			v.Errors = append(v.Errors, fmt.Sprintf("edges[%d] references unknown node (%d,%d)", i, e.U, e.V))
			continue
		}
		if e.LengthM <= 0 {
			v.Errors = append(v.Errors, fmt.Sprintf("edges[%d] (%d,%d,%d) has length_m <= 0", i, e.U, e.V, e.Key))
		}
		k := EdgeKey{U: e.U, V: e.V, Key: e.Key}
		if seenKeys[k] {
			v.Errors = append(v.Errors, fmt.Sprintf("edges[%d] duplicates key (%d,%d,%d)", i, e.U, e.V, e.Key))
		}
		seenKeys[k] = true
		if !isKnownRoadClass(e.RoadClass) {
			v.Warnings = append(v.Warnings, fmt.Sprintf("edges[%d] has unrecognized road_class %q", i, e.RoadClass))
		}
	}

	if len(doc.Edges) == 0 {
		v.Warnings = append(v.Warnings, "source has no edges")
	}

	if len(v.Errors) > 0 {
		return fmt.Errorf("graph: validation failed with %d errors", len(v.Errors))
	}
	return nil
}

func (v *Validator) HasWarnings() bool { return len(v.Warnings) > 0 }
func (v *Validator) HasErrors() bool   { return len(v.Errors) > 0 }

func isKnownRoadClass(s string) bool {
	switch RoadClass(s) {
	case RoadMotorway, RoadTrunk, RoadPrimary, RoadSecondary, RoadTertiary,
		RoadResidential, RoadUnclassified, RoadService, RoadFootway, RoadPath:
		return true
	}
	return false
}

func parseForValidation(data []byte) (*sourceDoc, error) {
	var doc sourceDoc
	if err := unmarshalSource(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
