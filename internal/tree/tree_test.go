package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revify/internal/model"
)

func file(path string) model.FileNode {
	return model.FileNode{Path: path, Name: path[lastSlash(path)+1:]}
}

func dir(path string) model.FileNode {
	n := file(path)
	n.IsDirectory = true
	return n
}

func lastSlash(p string) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return i
		}
	}
	return -1
}

func TestBuild(t *testing.T) {
	roots := Build([]model.FileNode{
		dir("src"),
		file("src/a.ts"),
		dir("src/lib"),
		file("src/lib/b.ts"),
		file("README.md"),
	})

	require.Len(t, roots, 2)
	assert.Equal(t, "src", roots[0].Path)
	assert.Equal(t, "README.md", roots[1].Path)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "src/a.ts", roots[0].Children[0].Path)
	assert.Equal(t, "src/lib", roots[0].Children[1].Path)
	require.Len(t, roots[0].Children[1].Children, 1)
	assert.Equal(t, "src/lib/b.ts", roots[0].Children[1].Children[0].Path)
}

func TestBuildMissingParentBecomesRoot(t *testing.T) {
	roots := Build([]model.FileNode{file("pkg/x/y.go"), dir("pkg")})
	require.Len(t, roots, 2)
	assert.Equal(t, "pkg/x/y.go", roots[0].Path)
	assert.Empty(t, roots[1].Children)
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil))
}

func TestFlattenRoundTrip(t *testing.T) {
	input := []model.FileNode{
		dir("a"), dir("a/b"), file("a/b/c.go"), file("a/d.go"), dir("e"), file("e/f.go"),
	}
	var want []string
	for _, n := range input {
		want = append(want, n.Path)
	}
	assert.ElementsMatch(t, want, Flatten(Build(input)))
	assert.Equal(t, want, Flatten(Build(input)))
}

func TestBuildIsDeterministic(t *testing.T) {
	input := []model.FileNode{dir("x"), file("x/1"), file("x/2"), file("y")}
	assert.Equal(t, Flatten(Build(input)), Flatten(Build(input)))
}

func TestVisible(t *testing.T) {
	roots := Build([]model.FileNode{dir("src"), dir("src/lib"), file("src/lib/b.ts"), file("src/a.ts")})

	rows := Visible(roots, nil)
	require.Len(t, rows, 1)

	rows = Visible(roots, map[string]bool{"src": true})
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[1].Depth)

	rows = Visible(roots, map[string]bool{"src": true, "src/lib": true})
	require.Len(t, rows, 4)
	assert.Equal(t, "src/lib/b.ts", rows[2].Node.Path)
	assert.Equal(t, 2, rows[2].Depth)
}

func TestFind(t *testing.T) {
	roots := Build([]model.FileNode{dir("src"), file("src/a.ts")})
	require.NotNil(t, Find(roots, "src/a.ts"))
	assert.Nil(t, Find(roots, "nope"))
}
