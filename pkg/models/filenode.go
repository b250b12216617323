// Package models contains the value types shared across the engine.
package models

// NodeType distinguishes files from folders in the virtual tree.
type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

// FileNode represents a file or folder in the virtual project tree.
// Path is always the slash-join of the ancestor names plus Name
// (just Name for a root-level node).
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     NodeType    `json:"type"`
	Children []*FileNode `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *FileNode) IsFolder() bool {
	return n.Type == NodeFolder
}

// WorkspaceState is the persisted snapshot of a workspace.
// FileContents is keyed by file-node path; image content is stored as a
// data-URI string. ExpandedFolders is kept sorted so snapshots are
// byte-stable across saves.
type WorkspaceState struct {
	FileStructure   []*FileNode       `json:"fileStructure"`
	ActiveFile      string            `json:"activeFile"`
	FileContents    map[string]string `json:"fileContents"`
	ExpandedFolders []string          `json:"expandedFolders"`
}
