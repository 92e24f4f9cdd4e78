package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/model"
	"github.com/sprite-ai/revify/internal/thread"
)

var commentsCmd = &cobra.Command{
	Use:         "comments <session>",
	Short:       "Print comment threads, grouped by file",
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runComments,
}

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add, answer and resolve comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <session> <path> <line> <text...>",
	Short: "Start a thread on a line",
	Example: `  revify comment add 6650 main.go 42 "this leaks the file handle"
  revify comment add 6650 main.go 42 --end-line 48 "extract this block"`,
	Args:        cobra.MinimumNArgs(4),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runCommentAdd,
}

var commentReplyCmd = &cobra.Command{
	Use:         "reply <session> <comment> <text...>",
	Short:       "Reply to a thread",
	Args:        cobra.MinimumNArgs(3),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runCommentReply,
}

var commentResolveCmd = &cobra.Command{
	Use:         "resolve <session> <comment>",
	Short:       "Mark a thread resolved",
	Args:        cobra.ExactArgs(2),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runSetResolved(true),
}

var commentUnresolveCmd = &cobra.Command{
	Use:         "unresolve <session> <comment>",
	Short:       "Reopen a resolved thread",
	Args:        cobra.ExactArgs(2),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runSetResolved(false),
}

func init() {
	commentsCmd.Flags().StringP("file", "f", "", "only threads on this file")
	commentsCmd.Flags().Bool("open", false, "hide resolved threads")

	commentAddCmd.Flags().Int("end-line", 0, "last line of the anchor (defaults to the start line)")

	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentReplyCmd)
	commentCmd.AddCommand(commentResolveCmd)
	commentCmd.AddCommand(commentUnresolveCmd)
}

func runComments(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()

	comments, err := d.client.ListComments(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading comments: %w", err)
	}

	only, _ := cmd.Flags().GetString("file")
	openOnly, _ := cmd.Flags().GetBool("open")

	var files []string
	seen := make(map[string]bool)
	for _, c := range comments {
		if only != "" && c.FilePath != only {
			continue
		}
		if !seen[c.FilePath] {
			seen[c.FilePath] = true
			files = append(files, c.FilePath)
		}
	}
	sort.Strings(files)

	printed := 0
	for _, f := range files {
		threads := thread.Build(comments, f)
		if openOnly {
			threads = openThreads(threads)
		}
		if len(threads) == 0 {
			continue
		}
		if printed > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, f)
		for _, t := range threads {
			writeThread(out, t)
		}
		printed++
	}
	if printed == 0 {
		fmt.Fprintln(out, "No comments yet.")
	}
	return nil
}

func openThreads(threads []thread.Thread) []thread.Thread {
	var out []thread.Thread
	for _, t := range threads {
		if !t.Root.Resolved {
			out = append(out, t)
		}
	}
	return out
}

func writeThread(w io.Writer, t thread.Thread) {
	anchor := "L" + strconv.Itoa(t.Root.StartLine)
	if t.Root.EndLine > t.Root.StartLine {
		anchor += "-" + strconv.Itoa(t.Root.EndLine)
	}
	state := ""
	if t.Root.Resolved {
		state = " [resolved]"
	}
	fmt.Fprintf(w, "  %s  %s  %s, %s%s\n", anchor, t.Root.ID, t.Root.Author.Name(), humanize.Time(t.Root.CreatedAt), state)
	writeBody(w, "    ", t.Root.Content)
	for _, r := range t.Replies {
		fmt.Fprintf(w, "    ↳ %s  %s, %s\n", r.ID, r.Author.Name(), humanize.Time(r.CreatedAt))
		writeBody(w, "      ", r.Content)
	}
}

func writeBody(w io.Writer, indent, body string) {
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		fmt.Fprintf(w, "%s%s\n", indent, line)
	}
}

func runCommentAdd(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)

	line, err := strconv.Atoi(args[2])
	if err != nil || line < 1 {
		return fmt.Errorf("invalid line %q", args[2])
	}
	end, _ := cmd.Flags().GetInt("end-line")
	if end == 0 {
		end = line
	}
	if end < line {
		return fmt.Errorf("end line %d is before start line %d", end, line)
	}
	content := strings.TrimSpace(strings.Join(args[3:], " "))
	if content == "" {
		return errors.New("comment is empty")
	}

	c, err := d.client.CreateComment(cmd.Context(), args[0], api.NewComment{
		FilePath:  strings.TrimPrefix(args[1], "/"),
		StartLine: line,
		EndLine:   end,
		Content:   content,
	})
	if err != nil {
		return fmt.Errorf("posting comment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Commented on %s:%d (%s)\n", c.FilePath, c.StartLine, c.ID)
	return nil
}

func runCommentReply(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	sessionID, target := args[0], args[1]

	content := strings.TrimSpace(strings.Join(args[2:], " "))
	if content == "" {
		return errors.New("reply is empty")
	}

	comments, err := d.client.ListComments(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("loading comments: %w", err)
	}
	root, err := threadRoot(comments, target)
	if err != nil {
		return err
	}

	c, err := d.client.CreateComment(cmd.Context(), sessionID, api.NewComment{
		FilePath:      root.FilePath,
		StartLine:     root.StartLine,
		EndLine:       root.EndLine,
		Content:       content,
		ParentComment: root.ID,
	})
	if err != nil {
		return fmt.Errorf("posting reply: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Replied on %s:%d (%s)\n", c.FilePath, c.StartLine, c.ID)
	return nil
}

// threadRoot finds the root of the thread that id belongs to. Replying to a
// reply answers its thread.
func threadRoot(comments []model.Comment, id string) (model.Comment, error) {
	byID := make(map[string]model.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}
	c, ok := byID[id]
	if !ok {
		return model.Comment{}, fmt.Errorf("comment %s not found", id)
	}
	if c.IsRoot() {
		return c, nil
	}
	root, ok := byID[c.ParentComment]
	if !ok {
		return model.Comment{}, fmt.Errorf("thread of comment %s not found", id)
	}
	return root, nil
}

func runSetResolved(resolved bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d := depsFrom(cmd)
		c, err := d.client.SetResolved(cmd.Context(), args[0], args[1], resolved)
		if err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
		state := "Reopened"
		if c.Resolved {
			state = "Resolved"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s thread %s on %s:%d\n", state, c.ID, c.FilePath, c.StartLine)
		return nil
	}
}
