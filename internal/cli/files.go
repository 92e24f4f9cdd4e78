package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/highlight"
	"github.com/sprite-ai/revify/internal/tree"
)

var treeCmd = &cobra.Command{
	Use:         "tree <session>",
	Short:       "Print the uploaded file tree",
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runTree,
}

var catCmd = &cobra.Command{
	Use:         "cat <session> <path>",
	Short:       "Print a file from the uploaded snapshot",
	Args:        cobra.ExactArgs(2),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runCat,
}

func init() {
	treeCmd.Flags().Bool("flat", false, "print one path per line, depth first")
	treeCmd.Flags().BoolP("size", "s", false, "show file sizes")

	catCmd.Flags().BoolP("number", "n", false, "number lines")
	catCmd.Flags().Bool("color", false, "syntax highlight the output")
}

func runTree(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()

	files, err := d.client.FileTree(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading file tree: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No files uploaded yet.")
		return nil
	}

	roots := tree.Build(files)
	if flat, _ := cmd.Flags().GetBool("flat"); flat {
		for _, p := range tree.Flatten(roots) {
			fmt.Fprintln(out, p)
		}
		return nil
	}

	expanded := make(map[string]bool)
	for _, f := range files {
		if f.IsDirectory {
			expanded[f.Path] = true
		}
	}
	showSize, _ := cmd.Flags().GetBool("size")
	for _, row := range tree.Visible(roots, expanded) {
		name := row.Node.Name
		if row.Node.IsDirectory {
			name += "/"
		} else if showSize {
			name += "  (" + humanize.Bytes(uint64(row.Node.Size)) + ")"
		}
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", row.Depth), name)
	}
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	path := strings.TrimPrefix(args[1], "/")

	content, err := d.client.FileContent(cmd.Context(), args[0], path)
	if err != nil {
		if errors.Is(err, api.ErrFileTooLarge) {
			return fmt.Errorf("%s is too large to display", path)
		}
		return fmt.Errorf("loading file content: %w", err)
	}

	number, _ := cmd.Flags().GetBool("number")
	color, _ := cmd.Flags().GetBool("color")
	writeSource(cmd.OutOrStdout(), path, content, number, color)
	return nil
}

var catLineNumberStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))

// writeSource prints content line by line, optionally numbered and
// highlighted with the same token colors as the code viewer.
func writeSource(w io.Writer, path, content string, number, color bool) {
	lines := highlight.Source(path, "", content)
	width := len(fmt.Sprint(len(lines)))
	for i, line := range lines {
		if number {
			n := fmt.Sprintf("%*d  ", width, i+1)
			if color {
				n = catLineNumberStyle.Render(n)
			}
			fmt.Fprint(w, n)
		}
		if !color {
			fmt.Fprintln(w, line.Plain())
			continue
		}
		var b strings.Builder
		for _, tok := range line.Tokens {
			if tok.Color == "" {
				b.WriteString(tok.Text)
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		}
		fmt.Fprintln(w, b.String())
	}
}
