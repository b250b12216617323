// Package tree provides shared utilities for working with virtual file trees.
//
// A tree is a forest of *models.FileNode roots. Paths never carry a leading
// slash: a root node's path is its name, and every other node's path is
// parentPath + "/" + name.
package tree

import (
	"strings"

	"github.com/siteforge/siteforge/pkg/models"
)

// ChildPath constructs a child path from parent + name.
func ChildPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// ParentPath returns the parent path of a path ("" for root-level paths).
func ParentPath(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// BaseName returns the last segment of a path.
func BaseName(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// FindByPath resolves a path in the forest (recursive). Returns nil if the
// path does not exist.
func FindByPath(roots []*models.FileNode, path string) *models.FileNode {
	for _, root := range roots {
		if root.Path == path {
			return root
		}
		if strings.HasPrefix(path, root.Path+"/") {
			if found := FindByPath(root.Children, path); found != nil {
				return found
			}
		}
	}
	return nil
}

// HasChild reports whether parent's children contain a node named name.
func HasChild(children []*models.FileNode, name string) bool {
	for _, child := range children {
		if child.Name == name {
			return true
		}
	}
	return false
}

// TransformAt locates the children slice at parentPath ("" for the forest
// roots) and replaces it with fn(children). It reports whether the parent
// path was found. All tree mutations funnel through this single traversal.
func TransformAt(roots []*models.FileNode, parentPath string, fn func([]*models.FileNode) []*models.FileNode) ([]*models.FileNode, bool) {
	if parentPath == "" {
		return fn(roots), true
	}
	for _, root := range roots {
		if root.Path == parentPath {
			if !root.IsFolder() {
				return roots, false
			}
			root.Children = fn(root.Children)
			return roots, true
		}
		if strings.HasPrefix(parentPath, root.Path+"/") {
			if _, ok := TransformAt(root.Children, parentPath, fn); ok {
				return roots, true
			}
		}
	}
	return roots, false
}

// Walk visits every node in depth-first order.
func Walk(roots []*models.FileNode, visit func(*models.FileNode)) {
	for _, root := range roots {
		visit(root)
		Walk(root.Children, visit)
	}
}

// CountNodes counts all nodes in the forest.
func CountNodes(roots []*models.FileNode) int {
	count := 0
	Walk(roots, func(*models.FileNode) { count++ })
	return count
}

// FilePaths returns the paths of all file-type nodes in depth-first order.
func FilePaths(roots []*models.FileNode) []string {
	var paths []string
	Walk(roots, func(n *models.FileNode) {
		if !n.IsFolder() {
			paths = append(paths, n.Path)
		}
	})
	return paths
}

// RewritePrefix rewrites node.Path for node and all descendants, replacing
// the leading oldPrefix with newPrefix.
func RewritePrefix(node *models.FileNode, oldPrefix, newPrefix string) {
	node.Path = newPrefix + strings.TrimPrefix(node.Path, oldPrefix)
	for _, child := range node.Children {
		RewritePrefix(child, oldPrefix, newPrefix)
	}
}
