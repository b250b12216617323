package workspace

import (
	"github.com/siteforge/siteforge/pkg/models"
	"github.com/siteforge/siteforge/pkg/tree"
)

// templateFiles is the built-in starter site seeded when a workspace has no
// snapshot and no repository to import from.
var templateFiles = []struct {
	path    string
	content string
}{
	{"index.html", "<!DOCTYPE html>\n<html>\n<head>\n  <title>My Site</title>\n  <link rel=\"stylesheet\" href=\"assets/style.css\">\n</head>\n<body>\n  <h1>Welcome</h1>\n  <p>Edit this page to get started.</p>\n</body>\n</html>\n"},
	{"about.md", "# About\n\nTell your visitors who you are.\n"},
	{"_layouts/default.html", "<!DOCTYPE html>\n<html>\n<head>\n  <title>{{ title }}</title>\n</head>\n<body>\n  {{ content }}\n</body>\n</html>\n"},
	{"posts/hello-world.md", "# Hello, World\n\nThis is your first post.\n"},
	{"assets/style.css", "body {\n  font-family: sans-serif;\n  margin: 2rem auto;\n  max-width: 42rem;\n}\n"},
}

// DefaultTemplate builds a fresh workspace from the built-in starter site.
func DefaultTemplate() *Workspace {
	w := New()
	folders := make(map[string]*models.FileNode)

	for _, f := range templateFiles {
		// Template paths are at most one folder deep.
		dir := tree.ParentPath(f.path)
		if dir != "" {
			if _, ok := folders[dir]; !ok {
				folder := &models.FileNode{Name: dir, Path: dir, Type: models.NodeFolder}
				folders[dir] = folder
				w.Roots = append(w.Roots, folder)
			}
		}

		node := &models.FileNode{
			Name: tree.BaseName(f.path),
			Path: f.path,
			Type: models.NodeFile,
		}
		if dir == "" {
			w.Roots = append(w.Roots, node)
		} else {
			folders[dir].Children = append(folders[dir].Children, node)
		}
		w.Contents[f.path] = f.content
	}

	w.ActiveFile = DefaultActiveFile
	return w
}
