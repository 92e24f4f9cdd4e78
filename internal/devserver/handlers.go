package devserver

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/sprite-ai/revify/internal/model"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Sessions ---

type createSessionRequest struct {
	Title             string                  `json:"title"`
	Description       string                  `json:"description"`
	Visibility        model.Visibility        `json:"visibility"`
	CommentPermission model.CommentPermission `json:"commentPermission"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, s.store.listSessions(userFrom(r.Context())))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if req.Visibility == "" {
		req.Visibility = model.VisibilityPrivate
	}
	if !req.Visibility.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid visibility")
		return
	}
	if req.CommentPermission == "" {
		req.CommentPermission = model.DefaultCommentPermission
	}
	if !req.CommentPermission.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid comment permission")
		return
	}

	sess := s.store.createSession(userFrom(r.Context()), req.Title, req.Description, req.Visibility, req.CommentPermission)
	s.writeData(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.getSession(chi.URLParam(r, "id"), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}
	s.writeData(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.deleteSession(chi.URLParam(r, "id"), userFrom(r.Context())); err != nil {
		s.storeError(w, err, "Session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Session deleted"})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Visibility != nil && !req.Visibility.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid visibility")
		return
	}
	if req.CommentPermission != nil && !req.CommentPermission.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid comment permission")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}
	sess, err := s.store.updateSettings(chi.URLParam(r, "id"), userFrom(r.Context()), req)
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}
	s.writeData(w, http.StatusOK, sess)
}

func (s *Server) handleGetInviteToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.store.inviteToken(chi.URLParam(r, "id"), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}
	var out *string
	if token != "" {
		out = &token
	}
	s.writeData(w, http.StatusOK, map[string]any{"inviteToken": out})
}

func (s *Server) handleRefreshInviteToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.store.refreshInviteToken(chi.URLParam(r, "id"), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}
	s.writeData(w, http.StatusOK, map[string]any{"inviteToken": token})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.join(chi.URLParam(r, "token"), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Invite link is invalid or has expired")
		return
	}
	s.writeData(w, http.StatusOK, map[string]any{"sessionId": id})
}

// --- Uploads ---

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id := chi.URLParam(r, "id")

	s.store.mu.RLock()
	_, err := s.store.owned(id, user)
	s.store.mu.RUnlock()
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Archive is too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "A ZIP file is required in field \"file\"")
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(hdr.Filename), ".zip") {
		s.writeError(w, http.StatusBadRequest, "Only ZIP files are allowed")
		return
	}
	archive, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Could not read upload")
		return
	}

	up := newUploadRecord(newID(), id, user.ID)
	s.store.addUpload(up)
	s.store.setStatus(id, model.StatusUploading)
	go s.process(s.ctx, up, archive)

	s.writeData(w, http.StatusAccepted, map[string]any{"uploadId": up.id})
}

// --- Files ---

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.tree(chi.URLParam(r, "id"), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}
	s.writeData(w, http.StatusOK, files)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	node, data, err := s.store.file(chi.URLParam(r, "id"), path, userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err, "File")
		return
	}
	if node.Size > s.opts.MaxFileSize {
		s.writeError(w, http.StatusRequestEntityTooLarge, "File is too large to display")
		return
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		s.writeError(w, http.StatusUnprocessableEntity, "Binary files cannot be displayed")
		return
	}
	s.writeData(w, http.StatusOK, map[string]any{"path": node.Path, "content": string(data)})
}

// --- Comments ---

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.store.listComments(chi.URLParam(r, "id"), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}
	s.writeData(w, http.StatusOK, comments)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentInput
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	switch {
	case req.Content == "":
		s.writeError(w, http.StatusBadRequest, "Comment content is required")
		return
	case req.FilePath == "":
		s.writeError(w, http.StatusBadRequest, "filePath is required")
		return
	case req.StartLine < 1 || req.EndLine < req.StartLine:
		s.writeError(w, http.StatusBadRequest, "Invalid line range")
		return
	}
	c, err := s.store.addComment(chi.URLParam(r, "id"), userFrom(r.Context()), req)
	if err != nil {
		s.storeError(w, err, "Session")
		return
	}
	s.writeData(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req commentUpdate
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "Comment content is required")
		return
	}
	c, err := s.store.updateComment(chi.URLParam(r, "id"), chi.URLParam(r, "commentId"), userFrom(r.Context()), req)
	if err != nil {
		s.storeError(w, err, "Comment")
		return
	}
	s.writeData(w, http.StatusOK, c)
}
