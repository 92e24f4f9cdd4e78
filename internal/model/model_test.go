package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibility(t *testing.T) {
	tests := []struct {
		v     Visibility
		valid bool
		label string
		next  Visibility
	}{
		{VisibilityPrivate, true, "Private", VisibilityLink},
		{VisibilityLink, true, "Link Only", VisibilityPublic},
		{VisibilityPublic, true, "Public", VisibilityPrivate},
		{Visibility("secret"), false, "Unknown", VisibilityLink},
	}
	for _, tt := range tests {
		if got := tt.v.Valid(); got != tt.valid {
			t.Errorf("Visibility(%q).Valid() = %v, want %v", tt.v, got, tt.valid)
		}
		if got := tt.v.Label(); got != tt.label {
			t.Errorf("Visibility(%q).Label() = %q, want %q", tt.v, got, tt.label)
		}
		if got := tt.v.Next(); got != tt.next {
			t.Errorf("Visibility(%q).Next() = %q, want %q", tt.v, got, tt.next)
		}
	}
}

func TestParseVisibility(t *testing.T) {
	v, err := ParseVisibility("public")
	require.NoError(t, err)
	assert.Equal(t, VisibilityPublic, v)

	_, err = ParseVisibility("everyone")
	assert.Error(t, err)
}

func TestStatusAndPermissionValid(t *testing.T) {
	assert.True(t, StatusReady.Valid())
	assert.False(t, Status("done").Valid())
	assert.True(t, CommentEveryone.Valid())
	assert.False(t, CommentPermission("nobody").Valid())
	assert.Equal(t, CommentEveryone, DefaultCommentPermission)
}

func TestUserRefDecodesObjectOrID(t *testing.T) {
	var s Session
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"s1","owner":{"_id":"u1","displayName":"Ada"}}`), &s))
	assert.Equal(t, "u1", s.Owner.ID)
	assert.Equal(t, "Ada", s.Owner.Name())

	require.NoError(t, json.Unmarshal([]byte(`{"_id":"s2","owner":"u2"}`), &s))
	assert.Equal(t, "u2", s.Owner.ID)
	assert.Equal(t, "Unknown", s.Owner.Name())
}

func TestSessionOwnedBy(t *testing.T) {
	s := Session{Owner: UserRef{ID: "u1"}}
	assert.True(t, s.OwnedBy(&User{ID: "u1"}))
	assert.False(t, s.OwnedBy(&User{ID: "u2"}))
	assert.False(t, s.OwnedBy(nil))
}

func TestCommentParentNull(t *testing.T) {
	var c Comment
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"c1","parentComment":null,"startLine":3,"endLine":3}`), &c))
	assert.True(t, c.IsRoot())

	require.NoError(t, json.Unmarshal([]byte(`{"_id":"c2","parentComment":"c1"}`), &c))
	assert.False(t, c.IsRoot())
}
