package devserver

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sprite-ai/revify/internal/highlight"
	"github.com/sprite-ai/revify/internal/model"
)

// progressEvent is one SSE frame queued for an upload.
type progressEvent struct {
	Name string
	Data map[string]any
}

// uploadRecord is the processing record of one archive. Events are kept so a
// subscriber that connects late still sees the whole history.
type uploadRecord struct {
	id        string
	sessionID string
	ownerID   string

	mu       sync.Mutex
	events   []progressEvent
	finished bool
	changed  chan struct{}
}

func newUploadRecord(id, sessionID, ownerID string) *uploadRecord {
	return &uploadRecord{id: id, sessionID: sessionID, ownerID: ownerID, changed: make(chan struct{})}
}

func (u *uploadRecord) emit(name string, data map[string]any, final bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return
	}
	u.events = append(u.events, progressEvent{Name: name, Data: data})
	u.finished = final
	close(u.changed)
	u.changed = make(chan struct{})
}

// since returns events from index i on, a channel closed on the next
// change, and whether the upload has finished.
func (u *uploadRecord) since(i int) ([]progressEvent, <-chan struct{}, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []progressEvent
	if i < len(u.events) {
		out = append(out, u.events[i:]...)
	}
	return out, u.changed, u.finished
}

func (s *store) addUpload(up *uploadRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[up.id] = up
}

func (s *store) getUpload(sessionID, uploadID string, user *model.User) (*uploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.uploads[uploadID]
	if !ok || up.sessionID != sessionID || up.ownerID != user.ID {
		return nil, errNotFound
	}
	return up, nil
}

// extracted is the snapshot built from an archive.
type extracted struct {
	files   []model.FileNode
	content map[string][]byte
}

// skipEntry reports archive entries that never belong in a snapshot.
func skipEntry(name string) bool {
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "__MACOSX", ".git", "node_modules", ".DS_Store":
			return true
		}
	}
	return false
}

// extract reads every regular file of the archive, reporting progress
// through step. Parent directories are listed before their contents.
func extract(zr *zip.Reader, step func(done, total int, name string)) (*extracted, error) {
	out := &extracted{content: make(map[string][]byte)}
	seen := make(map[string]bool)

	var entries []*zip.File
	for _, f := range zr.File {
		name := strings.TrimPrefix(path.Clean("/"+f.Name), "/")
		if name == "" || skipEntry(name) || f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, f)
	}

	addDirs := func(name string) {
		dir := path.Dir(name)
		if dir == "." {
			return
		}
		parts := strings.Split(dir, "/")
		for i := range parts {
			p := strings.Join(parts[:i+1], "/")
			if seen[p] {
				continue
			}
			seen[p] = true
			out.files = append(out.files, model.FileNode{Path: p, Name: parts[i], IsDirectory: true})
		}
	}

	for i, f := range entries {
		name := strings.TrimPrefix(path.Clean("/"+f.Name), "/")
		if seen[name] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		addDirs(name)
		seen[name] = true
		out.files = append(out.files, model.FileNode{
			Path:     name,
			Name:     path.Base(name),
			Size:     int64(len(data)),
			Language: highlight.Language(name),
		})
		out.content[name] = data
		if step != nil {
			step(i+1, len(entries), name)
		}
	}
	return out, nil
}

// process turns an uploaded archive into the session's snapshot,
// publishing progress as it goes.
func (s *Server) process(ctx context.Context, up *uploadRecord, archive []byte) {
	pause := func() bool {
		if s.opts.StepDelay <= 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.opts.StepDelay):
			return true
		}
	}
	fail := func(msg string) {
		s.store.setStatus(up.sessionID, model.StatusError)
		up.emit("error", map[string]any{"message": msg}, true)
		s.log.Warn().Str("upload", up.id).Str("reason", msg).Msg("upload processing failed")
	}

	up.emit("progress", map[string]any{"percent": 5, "message": "Reading archive"}, false)
	if !pause() {
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		fail("Invalid ZIP archive")
		return
	}
	up.emit("progress", map[string]any{
		"percent": 10,
		"message": fmt.Sprintf("Extracting %d entries (%s)", len(zr.File), humanize.Bytes(uint64(len(archive)))),
	}, false)

	snap, err := extract(zr, func(done, total int, name string) {
		pct := 10 + done*80/max(total, 1)
		up.emit("progress", map[string]any{"percent": pct, "message": "Extracted " + name}, false)
		pause()
	})
	if err != nil {
		fail(err.Error())
		return
	}
	if len(snap.content) == 0 {
		fail("Archive contains no files")
		return
	}

	up.emit("progress", map[string]any{"percent": 95, "message": "Indexing files"}, false)
	if !pause() {
		return
	}
	if !s.store.setSnapshot(up.sessionID, snap.files, snap.content) {
		fail("Session no longer exists")
		return
	}
	up.emit("done", map[string]any{"message": fmt.Sprintf("Upload complete: %d files", len(snap.content))}, true)
	s.log.Info().Str("upload", up.id).Str("session", up.sessionID).Int("files", len(snap.content)).Msg("upload processed")
}
