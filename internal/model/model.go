// Package model defines the core data types shared across revify.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Visibility controls who can see a session.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityLink    Visibility = "link"
	VisibilityPublic  Visibility = "public"
)

// Visibilities lists every visibility in the order the UI cycles through them.
var Visibilities = []Visibility{VisibilityPrivate, VisibilityLink, VisibilityPublic}

func (v Visibility) String() string { return string(v) }

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityLink, VisibilityPublic:
		return true
	}
	return false
}

// Label is the human-readable form shown next to a session.
func (v Visibility) Label() string {
	switch v {
	case VisibilityPrivate:
		return "Private"
	case VisibilityLink:
		return "Link Only"
	case VisibilityPublic:
		return "Public"
	default:
		return "Unknown"
	}
}

// Next returns the visibility after v in Visibilities, wrapping around.
func (v Visibility) Next() Visibility {
	for i, cur := range Visibilities {
		if cur == v {
			return Visibilities[(i+1)%len(Visibilities)]
		}
	}
	return VisibilityLink
}

// ParseVisibility converts s to a Visibility, rejecting unknown values.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(s)
	if !v.Valid() {
		return "", fmt.Errorf("invalid visibility %q (want private, link or public)", s)
	}
	return v, nil
}

// Status is the processing state of a session's upload.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUploading Status = "uploading"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

func (s Status) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusUploading, StatusReady, StatusError:
		return true
	}
	return false
}

// CommentPermission controls who may comment on a session.
type CommentPermission string

const (
	CommentOwner    CommentPermission = "owner"
	CommentInvited  CommentPermission = "invited"
	CommentEveryone CommentPermission = "everyone"
)

// DefaultCommentPermission is sent with every session the client creates.
const DefaultCommentPermission = CommentEveryone

func (p CommentPermission) String() string { return string(p) }

// Valid reports whether p is a known comment permission.
func (p CommentPermission) Valid() bool {
	switch p {
	case CommentOwner, CommentInvited, CommentEveryone:
		return true
	}
	return false
}

// User is an authenticated identity sourced from the auth backend.
type User struct {
	ID          string `json:"_id"`
	Provider    string `json:"provider"`
	ProviderID  string `json:"providerId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// UserRef is the embedded form of a user on sessions and comments.
type UserRef struct {
	ID          string `json:"_id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// UnmarshalJSON accepts either a populated user object or a bare id string.
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = UserRef{ID: id}
		return nil
	}
	type plain UserRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = UserRef(p)
	return nil
}

// Name returns the display name, or "Unknown" when the reference was not populated.
func (r UserRef) Name() string {
	if r.DisplayName == "" {
		return "Unknown"
	}
	return r.DisplayName
}

// Session is a container for one uploaded code snapshot plus its comment threads.
type Session struct {
	ID          string     `json:"_id"`
	Owner       UserRef    `json:"owner"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Visibility  Visibility `json:"visibility"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	InviteToken string     `json:"inviteToken,omitempty"`

	CommentPermission CommentPermission `json:"commentPermission,omitempty"`
}

// OwnedBy reports whether u owns the session. A nil user owns nothing.
func (s Session) OwnedBy(u *User) bool {
	return u != nil && u.ID != "" && s.Owner.ID == u.ID
}

// IsReady reports whether the uploaded snapshot is available for browsing.
func (s Session) IsReady() bool {
	return s.Status == StatusReady
}

// FileNode is one entry of a session's file snapshot.
type FileNode struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	Size        int64  `json:"size"`
	Language    string `json:"language,omitempty"`
}

// Comment is a line-anchored review comment. A comment without a parent is a thread root.
type Comment struct {
	ID            string    `json:"_id"`
	Session       string    `json:"session"`
	Author        UserRef   `json:"author"`
	FilePath      string    `json:"filePath"`
	StartLine     int       `json:"startLine"`
	EndLine       int       `json:"endLine"`
	Content       string    `json:"content"`
	Resolved      bool      `json:"resolved"`
	ParentComment string    `json:"parentComment"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsRoot reports whether c starts a thread.
func (c Comment) IsRoot() bool {
	return c.ParentComment == ""
}
