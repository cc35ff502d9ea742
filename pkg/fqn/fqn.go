// Package fqn provides helpers for dotted fully qualified names, the
// hierarchical identifiers used to address catalog entities. FQNs double as
// ltree paths in Postgres, so labels are restricted to ltree-safe characters.
package fqn

import (
	"fmt"
	"strings"
)

const separator = "."

// Deeper hierarchies than this indicate a malformed path, not a real catalog.
const maxDepth = 32

// Build joins name parts into an FQN, skipping empty parts.
func Build(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, separator)
}

// Parent returns the FQN of the containing asset, or "" for a root.
func Parent(path string) string {
	lastDot := strings.LastIndex(path, separator)
	if lastDot == -1 {
		return ""
	}
	return path[:lastDot]
}

// Name returns the final label of the FQN.
func Name(path string) string {
	lastDot := strings.LastIndex(path, separator)
	if lastDot == -1 {
		return path
	}
	return path[lastDot+1:]
}

// Depth returns the number of labels in the FQN.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, separator) + 1
}

// IsAncestor reports whether ancestor strictly contains descendant.
// An empty ancestor contains everything.
func IsAncestor(ancestor, descendant string) bool {
	if ancestor == "" {
		return descendant != ""
	}
	return strings.HasPrefix(descendant, ancestor+separator)
}

// Validate checks that the path is within the depth limit and that each label
// is non-empty and ltree-safe (letters, digits and underscores).
func Validate(path string) error {
	if path == "" {
		return fmt.Errorf("fqn must not be empty")
	}
	if depth := Depth(path); depth > maxDepth {
		return fmt.Errorf("fqn %q has %d labels, limit is %d", path, depth, maxDepth)
	}
	for _, label := range strings.Split(path, separator) {
		if label == "" {
			return fmt.Errorf("fqn %q contains an empty label", path)
		}
		for _, r := range label {
			if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				continue
			}
			return fmt.Errorf("fqn %q contains invalid character %q", path, r)
		}
	}
	return nil
}
