// Package discovery locates the data artifacts the service loads at
// startup: the road network source, the flood raster tree, the shelter
// roster, and any simulation scenario files under a configured data root.
package discovery

// ResourceKind classifies a discovered data artifact
type ResourceKind string

const (
	KindGraphSource ResourceKind = "graph_source"
	KindRasterTree  ResourceKind = "raster_tree"
	KindRoster      ResourceKind = "roster"
	KindScenario    ResourceKind = "scenario"
)

// Resource represents one discovered data artifact
type Resource struct {
	// Kind classifies the artifact
	Kind ResourceKind

	// Name is the base file or directory name
	Name string

	// Path is the absolute or root-relative path
	Path string

	// SizeBytes is the file size (0 for directories)
	SizeBytes int64
}

// Filter defines criteria for narrowing a discovery listing
type Filter struct {
	// NamePattern is an exact name or a wildcard (*) pattern for name matching
	NamePattern string

	// Kind filters by resource kind
	Kind ResourceKind
}
