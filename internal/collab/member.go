package collab

import (
	"math/rand/v2"
	"strings"
)

// PermissionLevel enumerates what a member may do inside a session.
type PermissionLevel string

const (
	// PermissionViewer may observe the canvas but not edit it.
	PermissionViewer PermissionLevel = "viewer"
	// PermissionEditor may edit the shared canvas.
	PermissionEditor PermissionLevel = "editor"
	// PermissionHost is held by the session creator.
	PermissionHost PermissionLevel = "host"
)

// Point is a canvas coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Member is one participant's identity within a session. The ID is assigned
// locally at join time and never reassigned; uniqueness is only guaranteed
// within a single session's lifetime.
type Member struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Color          string          `json:"color"`
	AvatarEmoji    string          `json:"avatarEmoji"`
	IsHost         bool            `json:"isHost"`
	Cursor         *Point          `json:"cursor"`
	LastSeenMillis int64           `json:"lastSeen"`
	Permission     PermissionLevel `json:"permission"`
}

// memberColors is the fixed palette members are assigned from.
var memberColors = []string{
	"#ef4444", "#f97316", "#eab308", "#22c55e",
	"#14b8a6", "#3b82f6", "#8b5cf6", "#ec4899",
	"#f43f5e", "#06b6d4", "#84cc16", "#a855f7",
}

// avatarEmojis is the fixed avatar set members are assigned from.
var avatarEmojis = []string{
	"🦊", "🐻", "🐼", "🐨", "🦁", "🐯", "🐸", "🐵",
	"🦄", "🐲", "🦋", "🐝", "🦈", "🐙", "🦜", "🦩",
}

// MemberIdentity is the randomized visual identity assigned at join time.
type MemberIdentity struct {
	Color       string
	AvatarEmoji string
}

// GenerateMemberIdentity samples a color and an avatar emoji independently
// and uniformly. Visual collisions between concurrent members are possible
// and acceptable.
func GenerateMemberIdentity() MemberIdentity {
	return MemberIdentity{
		Color:       memberColors[rand.IntN(len(memberColors))],
		AvatarEmoji: avatarEmojis[rand.IntN(len(avatarEmojis))],
	}
}

// NewMember assembles a member record from a display name and a generated
// identity. Host status and permission are decided by the caller.
func NewMember(id, name string, identity MemberIdentity, isHost bool, nowMillis int64) Member {
	permission := PermissionEditor
	if isHost {
		permission = PermissionHost
	}
	return Member{
		ID:             id,
		Name:           strings.TrimSpace(name),
		Color:          identity.Color,
		AvatarEmoji:    identity.AvatarEmoji,
		IsHost:         isHost,
		Cursor:         nil,
		LastSeenMillis: nowMillis,
		Permission:     permission,
	}
}
