// Package files implements filesystem resource discovery: it scans a data
// root and classifies what it finds into the artifact kinds the service
// loads at startup.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/riverwatch/evacroute/pkg/discovery"
)

// returnPeriodDirs are the directory names that mark a raster tree.
var returnPeriodDirs = []string{"rr01", "rr02", "rr03", "rr04"}

// Client scans a data root for loadable artifacts
type Client struct {
	root string
}

// New creates a discovery client over the given data root
func New(root string) (*Client, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discovery: data root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discovery: data root %s is not a directory", root)
	}
	return &Client{root: root}, nil
}

// Root returns the scanned data root
func (c *Client) Root() string {
	return c.root
}

// Discover scans the root and returns every recognized artifact
func (c *Client) Discover() ([]discovery.Resource, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("discovery: read root: %w", err)
	}

	resources := make([]discovery.Resource, 0)

	for _, entry := range entries {
		path := filepath.Join(c.root, entry.Name())

		if entry.IsDir() {
			if isRasterTree(path) {
				resources = append(resources, discovery.Resource{
					Kind: discovery.KindRasterTree,
					Name: entry.Name(),
					Path: path,
				})
			}
			continue
		}

		kind, ok := classifyFile(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		resources = append(resources, discovery.Resource{
			Kind:      kind,
			Name:      entry.Name(),
			Path:      path,
			SizeBytes: info.Size(),
		})
	}

	return resources, nil
}

// DiscoverFiltered scans the root and applies the filter
func (c *Client) DiscoverFiltered(filter discovery.Filter) ([]discovery.Resource, error) {
	all, err := c.Discover()
	if err != nil {
		return nil, err
	}

	matched := make([]discovery.Resource, 0, len(all))
	for _, r := range all {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		if filter.NamePattern != "" && !matchPattern(r.Name, filter.NamePattern) {
			continue
		}
		matched = append(matched, r)
	}
	return matched, nil
}

// FindOne returns the single resource of the given kind, failing when none
// or several exist so startup never silently picks one of two candidates.
func (c *Client) FindOne(kind discovery.ResourceKind) (discovery.Resource, error) {
	matches, err := c.DiscoverFiltered(discovery.Filter{Kind: kind})
	if err != nil {
		return discovery.Resource{}, err
	}
	switch len(matches) {
	case 0:
		return discovery.Resource{}, fmt.Errorf("discovery: no %s found under %s", kind, c.root)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return discovery.Resource{}, fmt.Errorf("discovery: %d candidates for %s: %v", len(matches), kind, names)
	}
}

// classifyFile maps a file name onto a resource kind
func classifyFile(name string) (discovery.ResourceKind, bool) {
	lower := strings.ToLower(name)
	ext := filepath.Ext(lower)
	base := strings.TrimSuffix(lower, ext)

	switch {
	case (ext == ".yaml" || ext == ".yml" || ext == ".graphml") && strings.Contains(base, "network"):
		return discovery.KindGraphSource, true
	case ext == ".csv" && (strings.Contains(base, "shelter") || strings.Contains(base, "roster")):
		return discovery.KindRoster, true
	case ext == ".csv" && strings.Contains(base, "scenario"):
		return discovery.KindScenario, true
	default:
		return "", false
	}
}

// isRasterTree reports whether dir contains at least one return-period
// subdirectory.
func isRasterTree(dir string) bool {
	for _, rp := range returnPeriodDirs {
		if info, err := os.Stat(filepath.Join(dir, rp)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// matchPattern performs simple matching: "*" matches anything; a leading or
// trailing "*" makes it a contains check; otherwise exact match.
func matchPattern(name, pattern string) bool {
	if pattern == "*" {
		return true
	}

	trimmed := pattern
	wildcard := false
	if strings.HasPrefix(trimmed, "*") {
		trimmed = strings.TrimPrefix(trimmed, "*")
		wildcard = true
	}
	if strings.HasSuffix(trimmed, "*") {
		trimmed = strings.TrimSuffix(trimmed, "*")
		wildcard = true
	}

	if wildcard {
		return trimmed == "" || strings.Contains(name, trimmed)
	}
	return name == pattern
}
