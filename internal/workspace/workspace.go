// Package workspace holds the in-memory virtual file tree and its
// mutation engine, plus debounced persistence of workspace snapshots.
package workspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/siteforge/siteforge/pkg/models"
	"github.com/siteforge/siteforge/pkg/tree"
)

// DefaultActiveFile is where the editor lands when its current file vanishes.
const DefaultActiveFile = "index.html"

// NameConflictError is a rejected mutation: a sibling with the target name
// already exists (or the name is empty). The tree is left untouched.
type NameConflictError struct {
	ParentPath string
	Name       string
}

func (e *NameConflictError) Error() string {
	if e.Name == "" {
		return "name must not be empty"
	}
	if strings.Contains(e.Name, "/") {
		return fmt.Sprintf("invalid name %q", e.Name)
	}
	return fmt.Sprintf("%q already exists in %q", e.Name, e.ParentPath)
}

// Workspace is one user session's virtual project tree. Mutations are
// synchronous and callers serialize access per session; invariants hold
// after every operation: unique sibling names, path == join of ancestor
// names, content keys exactly the file-node path set.
type Workspace struct {
	Roots      []*models.FileNode
	Contents   map[string]string
	ActiveFile string
	Expanded   map[string]bool
}

// New creates an empty workspace.
func New() *Workspace {
	return &Workspace{
		Contents: make(map[string]string),
		Expanded: make(map[string]bool),
	}
}

// FromImport builds a workspace around an imported forest and content map.
func FromImport(roots []*models.FileNode, contents map[string]string) *Workspace {
	w := &Workspace{
		Roots:    roots,
		Contents: contents,
		Expanded: make(map[string]bool),
	}
	if w.Contents == nil {
		w.Contents = make(map[string]string)
	}
	if _, ok := w.Contents[DefaultActiveFile]; ok {
		w.ActiveFile = DefaultActiveFile
	} else if paths := tree.FilePaths(roots); len(paths) > 0 {
		w.ActiveFile = paths[0]
	}
	return w
}

// Create adds a new node under parentPath ("" for the root level) with a
// generated, non-colliding default name. Files are seeded with empty content.
// The created node is returned so the caller can drive an immediate rename.
func (w *Workspace) Create(parentPath string, nodeType models.NodeType) (*models.FileNode, error) {
	if parentPath != "" {
		parent := tree.FindByPath(w.Roots, parentPath)
		if parent == nil || !parent.IsFolder() {
			return nil, fmt.Errorf("parent folder %q not found", parentPath)
		}
	}

	var created *models.FileNode
	w.Roots, _ = tree.TransformAt(w.Roots, parentPath, func(children []*models.FileNode) []*models.FileNode {
		name := defaultName(children, nodeType)
		created = &models.FileNode{
			Name: name,
			Path: tree.ChildPath(parentPath, name),
			Type: nodeType,
		}
		return append(children, created)
	})

	if created.Type == models.NodeFile {
		w.Contents[created.Path] = ""
	}
	return created, nil
}

// Rename renames the node at oldPath. Empty names and sibling collisions are
// rejected with NameConflictError and no structural change. Folder renames
// rewrite every descendant path and remap content, expanded-folder and
// active-file references sharing the old prefix.
func (w *Workspace) Rename(oldPath, newName string) error {
	node := tree.FindByPath(w.Roots, oldPath)
	if node == nil {
		return fmt.Errorf("path %q not found", oldPath)
	}
	parentPath := tree.ParentPath(oldPath)
	if newName == "" || strings.Contains(newName, "/") {
		return &NameConflictError{ParentPath: parentPath, Name: newName}
	}
	if newName == node.Name {
		return nil
	}

	conflict := false
	w.Roots, _ = tree.TransformAt(w.Roots, parentPath, func(children []*models.FileNode) []*models.FileNode {
		if tree.HasChild(children, newName) {
			conflict = true
		}
		return children
	})
	if conflict {
		return &NameConflictError{ParentPath: parentPath, Name: newName}
	}

	newPath := tree.ChildPath(parentPath, newName)
	node.Name = newName

	if node.IsFolder() {
		tree.RewritePrefix(node, oldPath, newPath)
		w.remapPrefix(oldPath, newPath)
	} else {
		node.Path = newPath
		if content, ok := w.Contents[oldPath]; ok {
			delete(w.Contents, oldPath)
			w.Contents[newPath] = content
		}
		if w.ActiveFile == oldPath {
			w.ActiveFile = newPath
		}
	}
	return nil
}

// remapPrefix moves content, expanded and active-file references from the
// old folder prefix to the new one. Unrelated keys are untouched.
func (w *Workspace) remapPrefix(oldPath, newPath string) {
	oldPrefix := oldPath + "/"

	var moved []string
	for key := range w.Contents {
		if strings.HasPrefix(key, oldPrefix) {
			moved = append(moved, key)
		}
	}
	for _, key := range moved {
		w.Contents[newPath+"/"+key[len(oldPrefix):]] = w.Contents[key]
		delete(w.Contents, key)
	}

	moved = moved[:0]
	for key := range w.Expanded {
		if key == oldPath || strings.HasPrefix(key, oldPrefix) {
			moved = append(moved, key)
		}
	}
	for _, key := range moved {
		delete(w.Expanded, key)
		w.Expanded[newPath+strings.TrimPrefix(key, oldPath)] = true
	}
	if w.ActiveFile == oldPath || strings.HasPrefix(w.ActiveFile, oldPrefix) {
		w.ActiveFile = newPath + strings.TrimPrefix(w.ActiveFile, oldPath)
	}
}

// Delete removes the node at path together with its subtree, every content
// key equal to or prefixed by it, and expanded entries under it. An active
// file inside the subtree falls back to the default file.
func (w *Workspace) Delete(path string) error {
	node := tree.FindByPath(w.Roots, path)
	if node == nil {
		return fmt.Errorf("path %q not found", path)
	}

	w.Roots, _ = tree.TransformAt(w.Roots, tree.ParentPath(path), func(children []*models.FileNode) []*models.FileNode {
		kept := children[:0]
		for _, child := range children {
			if child.Path != path {
				kept = append(kept, child)
			}
		}
		return kept
	})

	prefix := path + "/"
	for key := range w.Contents {
		if key == path || strings.HasPrefix(key, prefix) {
			delete(w.Contents, key)
		}
	}
	for key := range w.Expanded {
		if key == path || strings.HasPrefix(key, prefix) {
			delete(w.Expanded, key)
		}
	}
	if w.ActiveFile == path || strings.HasPrefix(w.ActiveFile, prefix) {
		w.ActiveFile = DefaultActiveFile
	}
	return nil
}

// SetContent writes content for an existing file node. Any content origin
// (editor, upload, generation) goes through here identically.
func (w *Workspace) SetContent(path, content string) error {
	node := tree.FindByPath(w.Roots, path)
	if node == nil || node.IsFolder() {
		return fmt.Errorf("file %q not found", path)
	}
	w.Contents[path] = content
	return nil
}

// SetExpanded records whether a folder is expanded in the file browser.
func (w *Workspace) SetExpanded(path string, expanded bool) {
	if expanded {
		w.Expanded[path] = true
	} else {
		delete(w.Expanded, path)
	}
}

// Snapshot converts the workspace into its persisted form. The expanded set
// serializes as a sorted array for store compatibility.
func (w *Workspace) Snapshot() *models.WorkspaceState {
	expanded := make([]string, 0, len(w.Expanded))
	for path := range w.Expanded {
		expanded = append(expanded, path)
	}
	sort.Strings(expanded)

	return &models.WorkspaceState{
		FileStructure:   w.Roots,
		ActiveFile:      w.ActiveFile,
		FileContents:    w.Contents,
		ExpandedFolders: expanded,
	}
}

// FromSnapshot restores a workspace from its persisted form.
func FromSnapshot(state *models.WorkspaceState) *Workspace {
	w := &Workspace{
		Roots:      state.FileStructure,
		Contents:   state.FileContents,
		ActiveFile: state.ActiveFile,
		Expanded:   make(map[string]bool, len(state.ExpandedFolders)),
	}
	if w.Contents == nil {
		w.Contents = make(map[string]string)
	}
	for _, path := range state.ExpandedFolders {
		w.Expanded[path] = true
	}
	return w
}

// defaultName picks a non-colliding default name for a new node, appending a
// numeric suffix on collision.
func defaultName(siblings []*models.FileNode, nodeType models.NodeType) string {
	base, ext := "new-folder", ""
	if nodeType == models.NodeFile {
		base, ext = "untitled", ".md"
	}

	name := base + ext
	for i := 1; tree.HasChild(siblings, name); i++ {
		name = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	return name
}
