package tree

import (
	"reflect"
	"testing"

	"github.com/siteforge/siteforge/pkg/models"
)

func file(path string) *models.FileNode {
	return &models.FileNode{Name: BaseName(path), Path: path, Type: models.NodeFile}
}

func folder(path string, children ...*models.FileNode) *models.FileNode {
	return &models.FileNode{Name: BaseName(path), Path: path, Type: models.NodeFolder, Children: children}
}

func sampleForest() []*models.FileNode {
	return []*models.FileNode{
		file("index.html"),
		folder("posts",
			file("posts/hello.md"),
			folder("posts/drafts",
				file("posts/drafts/wip.md"),
			),
		),
		folder("assets"),
	}
}

func TestPathHelpers(t *testing.T) {
	cases := []struct {
		path, parent, base string
	}{
		{"index.html", "", "index.html"},
		{"posts/hello.md", "posts", "hello.md"},
		{"a/b/c.txt", "a/b", "c.txt"},
	}
	for _, tc := range cases {
		if got := ParentPath(tc.path); got != tc.parent {
			t.Errorf("ParentPath(%q) = %q, want %q", tc.path, got, tc.parent)
		}
		if got := BaseName(tc.path); got != tc.base {
			t.Errorf("BaseName(%q) = %q, want %q", tc.path, got, tc.base)
		}
		if got := ChildPath(tc.parent, tc.base); got != tc.path {
			t.Errorf("ChildPath(%q, %q) = %q, want %q", tc.parent, tc.base, got, tc.path)
		}
	}
}

func TestFindByPath(t *testing.T) {
	roots := sampleForest()

	for _, path := range []string{"index.html", "posts", "posts/drafts/wip.md", "assets"} {
		node := FindByPath(roots, path)
		if node == nil {
			t.Fatalf("FindByPath(%q) = nil", path)
		}
		if node.Path != path {
			t.Errorf("FindByPath(%q).Path = %q", path, node.Path)
		}
	}

	for _, path := range []string{"", "missing.md", "posts/missing", "posts/drafts/wip.md/deeper"} {
		if node := FindByPath(roots, path); node != nil {
			t.Errorf("FindByPath(%q) = %v, want nil", path, node.Path)
		}
	}

	// "post" must not match inside "posts": prefix checks are segment-aware.
	roots = append(roots, file("postscript.md"))
	if node := FindByPath(roots, "posts/hello.md"); node == nil {
		t.Error("segment-aware lookup broken by sibling prefix")
	}
}

func TestHasChild(t *testing.T) {
	children := sampleForest()
	if !HasChild(children, "posts") || !HasChild(children, "index.html") {
		t.Error("existing child not found")
	}
	if HasChild(children, "hello.md") {
		t.Error("grandchild reported as child")
	}
}

func TestTransformAtRoots(t *testing.T) {
	roots := sampleForest()
	roots, ok := TransformAt(roots, "", func(children []*models.FileNode) []*models.FileNode {
		return append(children, file("new.md"))
	})
	if !ok {
		t.Fatal("root transform not applied")
	}
	if FindByPath(roots, "new.md") == nil {
		t.Error("appended root missing")
	}
}

func TestTransformAtNested(t *testing.T) {
	roots := sampleForest()
	roots, ok := TransformAt(roots, "posts/drafts", func(children []*models.FileNode) []*models.FileNode {
		return append(children, file("posts/drafts/new.md"))
	})
	if !ok {
		t.Fatal("nested transform not applied")
	}
	if FindByPath(roots, "posts/drafts/new.md") == nil {
		t.Error("appended child missing")
	}
	// Siblings untouched.
	if FindByPath(roots, "posts/hello.md") == nil {
		t.Error("sibling lost")
	}
}

func TestTransformAtMissingParent(t *testing.T) {
	roots := sampleForest()
	before := CountNodes(roots)

	roots, ok := TransformAt(roots, "no/such/folder", func(children []*models.FileNode) []*models.FileNode {
		t.Error("transform ran for missing parent")
		return children
	})
	if ok {
		t.Error("missing parent reported found")
	}
	if CountNodes(roots) != before {
		t.Error("forest mutated")
	}
}

func TestTransformAtFileParent(t *testing.T) {
	roots := sampleForest()
	_, ok := TransformAt(roots, "index.html", func(children []*models.FileNode) []*models.FileNode {
		t.Error("transform ran with a file as parent")
		return children
	})
	if ok {
		t.Error("file accepted as parent")
	}
}

func TestWalkOrder(t *testing.T) {
	var visited []string
	Walk(sampleForest(), func(n *models.FileNode) {
		visited = append(visited, n.Path)
	})
	want := []string{"index.html", "posts", "posts/hello.md", "posts/drafts", "posts/drafts/wip.md", "assets"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}

func TestCountNodesAndFilePaths(t *testing.T) {
	roots := sampleForest()
	if got := CountNodes(roots); got != 6 {
		t.Errorf("CountNodes = %d, want 6", got)
	}
	want := []string{"index.html", "posts/hello.md", "posts/drafts/wip.md"}
	if got := FilePaths(roots); !reflect.DeepEqual(got, want) {
		t.Errorf("FilePaths = %v, want %v", got, want)
	}
}

func TestRewritePrefix(t *testing.T) {
	node := folder("posts",
		file("posts/hello.md"),
		folder("posts/drafts",
			file("posts/drafts/wip.md"),
		),
	)

	RewritePrefix(node, "posts", "articles")

	var paths []string
	Walk([]*models.FileNode{node}, func(n *models.FileNode) {
		paths = append(paths, n.Path)
	})
	want := []string{"articles", "articles/hello.md", "articles/drafts", "articles/drafts/wip.md"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}
