package graph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// sourceDoc is the on-disk GraphML-like network shape: plain
// nodes with lat/lon and edges with length_m and road_class. Risk fields
// are never present in the source; they are always initialized to zero.
type sourceDoc struct {
	Nodes []sourceNode `yaml:"nodes"`
	Edges []sourceEdge `yaml:"edges"`
}

type sourceNode struct {
	ID  int64   `yaml:"id"`
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

type sourceEdge struct {
	U         int64   `yaml:"u"`
	V         int64   `yaml:"v"`
	Key       int     `yaml:"key"`
	LengthM   float64 `yaml:"length_m"`
	RoadClass string  `yaml:"road_class"`
	Name      string  `yaml:"name,omitempty"`
}

// Loader reads a network source file and builds a Graph. It holds no
// state of its own; Load takes the document as raw bytes, so tests can
// load from an in-memory document instead of disk.
type Loader struct{}

// NewLoader returns a Loader ready to use.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFile parses the GraphML-like file at path into a Graph.
func (l *Loader) LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read source: %w", err)
	}
	return l.Load(data)
}

func unmarshalSource(data []byte, doc *sourceDoc) error {
	return yaml.Unmarshal(data, doc)
}

// Load parses raw YAML bytes into a Graph: every node is taken as-is; every
// edge starts at risk_score=0 with weight=length_m; the spatial index is
// built once, here, and never rebuilt. Missing endpoints or
// length_m <= 0 are fatal (ErrMissingEndpoint / ErrInvalidLength):
// a structurally broken network must never come up half-loaded.
func (l *Loader) Load(data []byte) (*Graph, error) {
	var doc sourceDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("graph: parse source: %w", err)
	}

	g := New()

	for _, n := range doc.Nodes {
		g.nodes[n.ID] = Node{ID: n.ID, Lat: n.Lat, Lon: n.Lon}
	}

	for _, se := range doc.Edges {
		u, uok := g.nodes[se.U]
		v, vok := g.nodes[se.V]
		if !uok || !vok {
			return nil, fmt.Errorf("%w: edge (%d,%d,%d)", ErrMissingEndpoint, se.U, se.V, se.Key)
		}
		if se.LengthM <= 0 {
			return nil, fmt.Errorf("%w: edge (%d,%d,%d)", ErrInvalidLength, se.U, se.V, se.Key)
		}

		k := EdgeKey{U: se.U, V: se.V, Key: se.Key}
		e := &Edge{
			U:         se.U,
			V:         se.V,
			Key:       se.Key,
			LengthM:   se.LengthM,
			RoadClass: RoadClass(se.RoadClass),
			Name:      se.Name,
			RiskScore: 0,
			Weight:    se.LengthM,
		}
		g.edges[k] = e

		midLat, midLon := midpoint(u, v)
		g.index.insert(k, midLat, midLon)
	}

	return g, nil
}
