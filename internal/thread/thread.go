// Package thread groups a file's comments into root-plus-replies threads.
package thread

import (
	"sort"

	"github.com/sprite-ai/revify/internal/model"
)

// Thread is a root comment and its replies, oldest first.
type Thread struct {
	Root    model.Comment
	Replies []model.Comment
}

// Build returns the threads for filePath ordered by start line. Replies
// whose root is not among the file's comments are dropped.
func Build(comments []model.Comment, filePath string) []Thread {
	var roots []model.Comment
	replies := make(map[string][]model.Comment)
	for _, c := range comments {
		if c.FilePath != filePath {
			continue
		}
		if c.IsRoot() {
			roots = append(roots, c)
		} else {
			replies[c.ParentComment] = append(replies[c.ParentComment], c)
		}
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].StartLine < roots[j].StartLine
	})

	threads := make([]Thread, 0, len(roots))
	for _, r := range roots {
		rs := replies[r.ID]
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		})
		threads = append(threads, Thread{Root: r, Replies: rs})
	}
	return threads
}

// LineCounts maps each line to the number of threads anchored there.
func LineCounts(threads []Thread) map[int]int {
	counts := make(map[int]int, len(threads))
	for _, t := range threads {
		for line := t.Root.StartLine; line <= max(t.Root.EndLine, t.Root.StartLine); line++ {
			counts[line]++
		}
	}
	return counts
}

// OnLine returns the threads whose anchor covers line.
func OnLine(threads []Thread, line int) []Thread {
	var out []Thread
	for _, t := range threads {
		if line >= t.Root.StartLine && line <= max(t.Root.EndLine, t.Root.StartLine) {
			out = append(out, t)
		}
	}
	return out
}
