package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sprite-ai/revify/internal/model"
)

// sessionTTL is how long a session lives before it expires.
const sessionTTL = 7 * 24 * time.Hour

var (
	errNotFound  = errors.New("not found")
	errForbidden = errors.New("forbidden")
)

// session is the stored form of a session plus server-only fields.
type session struct {
	model.Session
	members map[string]bool
	files   []model.FileNode
	content map[string][]byte
}

// store is the in-memory backing state of the dev server.
type store struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]*model.User
	logins   map[string]string // cookie value -> user id
	sessions map[string]*session
	comments map[string][]*model.Comment // session id -> comments
	uploads  map[string]*uploadRecord
}

func newStore(now func() time.Time) *store {
	if now == nil {
		now = time.Now
	}
	return &store{
		now:      now,
		users:    make(map[string]*model.User),
		logins:   make(map[string]string),
		sessions: make(map[string]*session),
		comments: make(map[string][]*model.Comment),
		uploads:  make(map[string]*uploadRecord),
	}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// signIn finds or creates the user with displayName and returns a new
// login token for them.
func (s *store) signIn(displayName string) (string, model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user *model.User
	for _, u := range s.users {
		if u.DisplayName == displayName {
			user = u
			break
		}
	}
	if user == nil {
		id := newID()
		user = &model.User{
			ID:          id,
			Provider:    "google",
			ProviderID:  id,
			DisplayName: displayName,
			Email:       strings.ToLower(strings.ReplaceAll(displayName, " ", ".")) + "@example.com",
		}
		s.users[id] = user
	}
	token := uuid.NewString()
	s.logins[token] = user.ID
	return token, *user
}

func (s *store) userForLogin(token string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.logins[token]
	if !ok {
		return nil, false
	}
	u := *s.users[id]
	return &u, true
}

func (s *store) signOut(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logins, token)
}

func ref(u *model.User) model.UserRef {
	return model.UserRef{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

func (s *store) createSession(owner *model.User, title, description string, vis model.Visibility, perm model.CommentPermission) model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	sess := &session{
		Session: model.Session{
			ID:                newID(),
			Owner:             ref(owner),
			Title:             title,
			Description:       description,
			Visibility:        vis,
			Status:            model.StatusCreated,
			CreatedAt:         now,
			ExpiresAt:         now.Add(sessionTTL),
			CommentPermission: perm,
		},
		members: make(map[string]bool),
		content: make(map[string][]byte),
	}
	s.sessions[sess.ID] = sess
	return sess.Session
}

// listSessions returns sessions the user owns or joined, newest first.
func (s *store) listSessions(user *model.User) []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Session{}
	for _, sess := range s.sessions {
		if sess.Owner.ID == user.ID || sess.members[user.ID] {
			out = append(out, sess.Session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func canView(sess *session, user *model.User) bool {
	if sess.Owner.ID == user.ID || sess.members[user.ID] {
		return true
	}
	return sess.Visibility != model.VisibilityPrivate
}

func canComment(sess *session, user *model.User) bool {
	if sess.Owner.ID == user.ID {
		return true
	}
	switch sess.CommentPermission {
	case model.CommentOwner:
		return false
	case model.CommentInvited:
		return sess.members[user.ID]
	default:
		return canView(sess, user)
	}
}

// viewable returns the session if user may see it. Sessions a user may not
// see are reported as missing.
func (s *store) viewable(id string, user *model.User) (*session, error) {
	sess, ok := s.sessions[id]
	if !ok || !canView(sess, user) {
		return nil, errNotFound
	}
	return sess, nil
}

// owned returns the session if user owns it.
func (s *store) owned(id string, user *model.User) (*session, error) {
	sess, err := s.viewable(id, user)
	if err != nil {
		return nil, err
	}
	if sess.Owner.ID != user.ID {
		return nil, errForbidden
	}
	return sess, nil
}

func (s *store) getSession(id string, user *model.User) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, err := s.viewable(id, user)
	if err != nil {
		return model.Session{}, err
	}
	out := sess.Session
	if sess.Owner.ID != user.ID {
		out.InviteToken = ""
	}
	return out, nil
}

type settingsUpdate struct {
	Title             *string                  `json:"title"`
	Description       *string                  `json:"description"`
	Visibility        *model.Visibility        `json:"visibility"`
	CommentPermission *model.CommentPermission `json:"commentPermission"`
}

func (s *store) updateSettings(id string, user *model.User, in settingsUpdate) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.owned(id, user)
	if err != nil {
		return model.Session{}, err
	}
	if in.Title != nil {
		sess.Title = *in.Title
	}
	if in.Description != nil {
		sess.Description = *in.Description
	}
	if in.Visibility != nil {
		sess.Visibility = *in.Visibility
	}
	if in.CommentPermission != nil {
		sess.CommentPermission = *in.CommentPermission
	}
	return sess.Session, nil
}

func (s *store) deleteSession(id string, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(id, user); err != nil {
		return err
	}
	delete(s.sessions, id)
	delete(s.comments, id)
	for uid, up := range s.uploads {
		if up.sessionID == id {
			delete(s.uploads, uid)
		}
	}
	return nil
}

func (s *store) inviteToken(id string, user *model.User) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, err := s.owned(id, user)
	if err != nil {
		return "", err
	}
	return sess.InviteToken, nil
}

func (s *store) refreshInviteToken(id string, user *model.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.owned(id, user)
	if err != nil {
		return "", err
	}
	sess.InviteToken = newID()
	return sess.InviteToken, nil
}

func (s *store) join(token string, user *model.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return "", errNotFound
	}
	for _, sess := range s.sessions {
		if sess.InviteToken == token {
			if sess.Owner.ID != user.ID {
				sess.members[user.ID] = true
			}
			return sess.ID, nil
		}
	}
	return "", errNotFound
}

func (s *store) setStatus(id string, status model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Status = status
	}
}

// setSnapshot replaces the session's files and marks it ready.
func (s *store) setSnapshot(id string, files []model.FileNode, content map[string][]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.files = files
	sess.content = content
	sess.Status = model.StatusReady
	return true
}

func (s *store) tree(id string, user *model.User) ([]model.FileNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, err := s.viewable(id, user)
	if err != nil {
		return nil, err
	}
	out := make([]model.FileNode, len(sess.files))
	copy(out, sess.files)
	return out, nil
}

func (s *store) file(id, path string, user *model.User) (model.FileNode, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, err := s.viewable(id, user)
	if err != nil {
		return model.FileNode{}, nil, err
	}
	for _, f := range sess.files {
		if f.Path == path && !f.IsDirectory {
			return f, sess.content[path], nil
		}
	}
	return model.FileNode{}, nil, errNotFound
}

func (s *store) listComments(id string, user *model.User) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.viewable(id, user); err != nil {
		return nil, err
	}
	out := make([]model.Comment, 0, len(s.comments[id]))
	for _, c := range s.comments[id] {
		out = append(out, *c)
	}
	return out, nil
}

type commentInput struct {
	FilePath      string  `json:"filePath"`
	StartLine     int     `json:"startLine"`
	EndLine       int     `json:"endLine"`
	Content       string  `json:"content"`
	ParentComment *string `json:"parentComment"`
}

var errBadParent = errors.New("parent comment not found")

func (s *store) addComment(id string, user *model.User, in commentInput) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.viewable(id, user)
	if err != nil {
		return model.Comment{}, err
	}
	if !canComment(sess, user) {
		return model.Comment{}, errForbidden
	}
	parent := ""
	if in.ParentComment != nil && *in.ParentComment != "" {
		parent = *in.ParentComment
		found := false
		for _, c := range s.comments[id] {
			if c.ID == parent && c.IsRoot() && c.FilePath == in.FilePath {
				found = true
				break
			}
		}
		if !found {
			return model.Comment{}, errBadParent
		}
	}
	now := s.now().UTC()
	c := &model.Comment{
		ID:            newID(),
		Session:       id,
		Author:        ref(user),
		FilePath:      in.FilePath,
		StartLine:     in.StartLine,
		EndLine:       in.EndLine,
		Content:       in.Content,
		ParentComment: parent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.comments[id] = append(s.comments[id], c)
	return *c, nil
}

type commentUpdate struct {
	Content  *string `json:"content"`
	Resolved *bool   `json:"resolved"`
}

func (s *store) updateComment(id, commentID string, user *model.User, in commentUpdate) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.viewable(id, user)
	if err != nil {
		return model.Comment{}, err
	}
	for _, c := range s.comments[id] {
		if c.ID != commentID {
			continue
		}
		isAuthor := c.Author.ID == user.ID
		if in.Content != nil {
			if !isAuthor {
				return model.Comment{}, errForbidden
			}
			c.Content = *in.Content
		}
		if in.Resolved != nil {
			if !isAuthor && sess.Owner.ID != user.ID {
				return model.Comment{}, errForbidden
			}
			c.Resolved = *in.Resolved
		}
		c.UpdatedAt = s.now().UTC()
		return *c, nil
	}
	return model.Comment{}, errNotFound
}
